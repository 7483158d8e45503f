// Package docs holds the swagger document served under /swagger/.
package docs

import "github.com/swaggo/swag"

const docTemplate = `{
	"schemes": {{ marshal .Schemes }},
	"swagger": "2.0",
	"info": {
		"description": "{{escape .Description}}",
		"title": "{{.Title}}",
		"contact": {},
		"version": "{{.Version}}"
	},
	"host": "{{.Host}}",
	"basePath": "{{.BasePath}}",
	"paths": {
		"/v1/votes": {
			"post": {
				"summary": "Create a draft vote",
				"tags": [
					"Votes"
				],
				"produces": [
					"application/json"
				],
				"responses": {
					"201": {
						"description": "ok",
						"schema": {
							"$ref": "#/definitions/VoteResponse"
						}
					},
					"429": {
						"description": "rate limited",
						"schema": {
							"$ref": "#/definitions/ErrorResponse"
						}
					}
				},
				"consumes": [
					"application/json"
				],
				"parameters": [
					{
						"name": "body",
						"in": "body",
						"required": true,
						"schema": {
							"$ref": "#/definitions/CreateVoteRequest"
						}
					}
				]
			}
		},
		"/v1/votes/{vote_id}/options": {
			"post": {
				"summary": "Add an option",
				"tags": [
					"Votes"
				],
				"produces": [
					"application/json"
				],
				"responses": {
					"201": {
						"description": "ok",
						"schema": {
							"$ref": "#/definitions/OptionResponse"
						}
					},
					"429": {
						"description": "rate limited",
						"schema": {
							"$ref": "#/definitions/ErrorResponse"
						}
					}
				},
				"consumes": [
					"application/json"
				],
				"parameters": [
					{
						"type": "string",
						"name": "vote_id",
						"in": "path",
						"required": true
					},
					{
						"name": "body",
						"in": "body",
						"required": true,
						"schema": {
							"$ref": "#/definitions/OptionRequest"
						}
					}
				]
			}
		},
		"/v1/votes/{vote_id}/options/{option_id}": {
			"delete": {
				"summary": "Remove a draft option",
				"tags": [
					"Votes"
				],
				"produces": [
					"application/json"
				],
				"responses": {
					"204": {
						"description": "ok"
					},
					"429": {
						"description": "rate limited",
						"schema": {
							"$ref": "#/definitions/ErrorResponse"
						}
					}
				},
				"parameters": [
					{
						"type": "string",
						"name": "vote_id",
						"in": "path",
						"required": true
					},
					{
						"type": "string",
						"name": "option_id",
						"in": "path",
						"required": true
					}
				]
			}
		},
		"/v1/votes/{vote_id}/publish": {
			"post": {
				"summary": "Publish a draft vote",
				"tags": [
					"Votes"
				],
				"produces": [
					"application/json"
				],
				"responses": {
					"200": {
						"description": "ok",
						"schema": {
							"$ref": "#/definitions/VoteResponse"
						}
					},
					"429": {
						"description": "rate limited",
						"schema": {
							"$ref": "#/definitions/ErrorResponse"
						}
					}
				},
				"parameters": [
					{
						"type": "string",
						"name": "vote_id",
						"in": "path",
						"required": true
					}
				]
			}
		},
		"/v1/votes/{vote_id}/close": {
			"post": {
				"summary": "Close an active vote",
				"tags": [
					"Votes"
				],
				"produces": [
					"application/json"
				],
				"responses": {
					"200": {
						"description": "ok",
						"schema": {
							"$ref": "#/definitions/VoteResponse"
						}
					},
					"429": {
						"description": "rate limited",
						"schema": {
							"$ref": "#/definitions/ErrorResponse"
						}
					}
				},
				"parameters": [
					{
						"type": "string",
						"name": "vote_id",
						"in": "path",
						"required": true
					}
				]
			}
		},
		"/v1/votes/{vote_id}": {
			"get": {
				"summary": "Vote view by ID",
				"tags": [
					"Votes"
				],
				"produces": [
					"application/json"
				],
				"responses": {
					"200": {
						"description": "ok",
						"schema": {
							"$ref": "#/definitions/VoteResponse"
						}
					},
					"404": {
						"description": "not found or not visible",
						"schema": {
							"$ref": "#/definitions/ErrorResponse"
						}
					}
				},
				"parameters": [
					{
						"type": "string",
						"name": "vote_id",
						"in": "path",
						"required": true
					},
					{
						"type": "string",
						"name": "X-User-Id",
						"in": "header"
					}
				]
			}
		},
		"/v1/votes/by-slug/{slug}": {
			"get": {
				"summary": "Public vote view",
				"tags": [
					"Votes"
				],
				"produces": [
					"application/json"
				],
				"responses": {
					"200": {
						"description": "ok",
						"schema": {
							"$ref": "#/definitions/VoteResponse"
						}
					},
					"429": {
						"description": "rate limited",
						"schema": {
							"$ref": "#/definitions/ErrorResponse"
						}
					}
				},
				"parameters": [
					{
						"type": "string",
						"name": "slug",
						"in": "path",
						"required": true
					}
				]
			}
		},
		"/v1/votes/{vote_id}/responses": {
			"post": {
				"summary": "Submit a response set",
				"tags": [
					"Submissions"
				],
				"produces": [
					"application/json"
				],
				"responses": {
					"201": {
						"description": "ok",
						"schema": {
							"$ref": "#/definitions/SubmitResponseResponse"
						}
					},
					"429": {
						"description": "rate limited",
						"schema": {
							"$ref": "#/definitions/ErrorResponse"
						}
					}
				},
				"consumes": [
					"application/json"
				],
				"parameters": [
					{
						"type": "string",
						"name": "vote_id",
						"in": "path",
						"required": true
					},
					{
						"name": "body",
						"in": "body",
						"required": true,
						"schema": {
							"$ref": "#/definitions/SubmitResponseRequest"
						}
					}
				]
			}
		},
		"/v1/votes/{vote_id}/results": {
			"get": {
				"summary": "Live results",
				"tags": [
					"Results"
				],
				"produces": [
					"application/json"
				],
				"responses": {
					"200": {
						"description": "ok",
						"schema": {
							"$ref": "#/definitions/ResultsResponse"
						}
					},
					"429": {
						"description": "rate limited",
						"schema": {
							"$ref": "#/definitions/ErrorResponse"
						}
					}
				},
				"parameters": [
					{
						"type": "string",
						"name": "vote_id",
						"in": "path",
						"required": true
					}
				]
			}
		},
		"/v1/votes/{vote_id}/results/snapshot": {
			"get": {
				"summary": "Stored result snapshot",
				"tags": [
					"Results"
				],
				"produces": [
					"application/json"
				],
				"responses": {
					"200": {
						"description": "ok",
						"schema": {
							"$ref": "#/definitions/SnapshotResponse"
						}
					},
					"429": {
						"description": "rate limited",
						"schema": {
							"$ref": "#/definitions/ErrorResponse"
						}
					}
				},
				"parameters": [
					{
						"type": "string",
						"name": "vote_id",
						"in": "path",
						"required": true
					}
				]
			}
		},
		"/v1/votes/{vote_id}/flags": {
			"post": {
				"summary": "Flag a vote",
				"tags": [
					"Moderation"
				],
				"produces": [
					"application/json"
				],
				"responses": {
					"201": {
						"description": "ok",
						"schema": {
							"$ref": "#/definitions/FlagResponse"
						}
					},
					"429": {
						"description": "rate limited",
						"schema": {
							"$ref": "#/definitions/ErrorResponse"
						}
					}
				},
				"consumes": [
					"application/json"
				],
				"parameters": [
					{
						"type": "string",
						"name": "vote_id",
						"in": "path",
						"required": true
					},
					{
						"name": "body",
						"in": "body",
						"required": true,
						"schema": {
							"$ref": "#/definitions/FlagRequest"
						}
					}
				]
			}
		},
		"/v1/moderation/flags": {
			"get": {
				"summary": "List flags",
				"tags": [
					"Moderation"
				],
				"produces": [
					"application/json"
				],
				"responses": {
					"200": {
						"description": "ok",
						"schema": {
							"$ref": "#/definitions/FlagListResponse"
						}
					},
					"429": {
						"description": "rate limited",
						"schema": {
							"$ref": "#/definitions/ErrorResponse"
						}
					}
				}
			}
		},
		"/v1/moderation/flags/{flag_id}/review": {
			"post": {
				"summary": "Review a flag",
				"tags": [
					"Moderation"
				],
				"produces": [
					"application/json"
				],
				"responses": {
					"200": {
						"description": "ok",
						"schema": {
							"$ref": "#/definitions/FlagResponse"
						}
					},
					"429": {
						"description": "rate limited",
						"schema": {
							"$ref": "#/definitions/ErrorResponse"
						}
					}
				},
				"consumes": [
					"application/json"
				],
				"parameters": [
					{
						"type": "string",
						"name": "flag_id",
						"in": "path",
						"required": true
					},
					{
						"name": "body",
						"in": "body",
						"required": true,
						"schema": {
							"$ref": "#/definitions/ReviewFlagRequest"
						}
					}
				]
			}
		},
		"/v1/moderation/votes/{vote_id}/actions": {
			"post": {
				"summary": "Apply a moderation action",
				"tags": [
					"Moderation"
				],
				"produces": [
					"application/json"
				],
				"responses": {
					"200": {
						"description": "ok",
						"schema": {
							"$ref": "#/definitions/VoteResponse"
						}
					},
					"429": {
						"description": "rate limited",
						"schema": {
							"$ref": "#/definitions/ErrorResponse"
						}
					}
				},
				"consumes": [
					"application/json"
				],
				"parameters": [
					{
						"type": "string",
						"name": "vote_id",
						"in": "path",
						"required": true
					},
					{
						"name": "body",
						"in": "body",
						"required": true,
						"schema": {
							"$ref": "#/definitions/ApplyActionRequest"
						}
					}
				]
			},
			"get": {
				"summary": "Moderation audit trail",
				"tags": [
					"Moderation"
				],
				"produces": [
					"application/json"
				],
				"responses": {
					"200": {
						"description": "ok",
						"schema": {
							"$ref": "#/definitions/ModerationActionListResponse"
						}
					},
					"429": {
						"description": "rate limited",
						"schema": {
							"$ref": "#/definitions/ErrorResponse"
						}
					}
				},
				"parameters": [
					{
						"type": "string",
						"name": "vote_id",
						"in": "path",
						"required": true
					}
				]
			}
		},
		"/v1/moderation/actions/bulk": {
			"post": {
				"summary": "Apply an action to many votes",
				"tags": [
					"Moderation"
				],
				"produces": [
					"application/json"
				],
				"responses": {
					"200": {
						"description": "ok",
						"schema": {
							"$ref": "#/definitions/BulkActionResponse"
						}
					},
					"429": {
						"description": "rate limited",
						"schema": {
							"$ref": "#/definitions/ErrorResponse"
						}
					}
				},
				"consumes": [
					"application/json"
				],
				"parameters": [
					{
						"name": "body",
						"in": "body",
						"required": true,
						"schema": {
							"$ref": "#/definitions/BulkActionRequest"
						}
					}
				]
			}
		},
		"/health": {
			"get": {
				"summary": "Liveness",
				"tags": [
					"System"
				],
				"produces": [
					"application/json"
				],
				"responses": {
					"200": {
						"description": "ok",
						"schema": {
							"$ref": "#/definitions/HealthResponse"
						}
					}
				}
			}
		}
	},
	"definitions": {
		"OptionRequest": {
			"type": "object",
			"properties": {
				"title": {
					"type": "string"
				},
				"content": {
					"type": "string"
				}
			}
		},
		"CreateVoteRequest": {
			"type": "object",
			"properties": {
				"title": {
					"type": "string"
				},
				"description": {
					"type": "string"
				},
				"options": {
					"type": "array",
					"items": {
						"$ref": "#/definitions/OptionRequest"
					}
				}
			}
		},
		"OptionResponse": {
			"type": "object",
			"properties": {
				"option_id": {
					"type": "string"
				},
				"title": {
					"type": "string"
				},
				"content": {
					"type": "string"
				},
				"position": {
					"type": "integer"
				}
			}
		},
		"VoteResponse": {
			"type": "object",
			"properties": {
				"vote_id": {
					"type": "string"
				},
				"slug": {
					"type": "string"
				},
				"owner_id": {
					"type": "string"
				},
				"title": {
					"type": "string"
				},
				"description": {
					"type": "string"
				},
				"status": {
					"type": "string"
				},
				"options": {
					"type": "array",
					"items": {
						"$ref": "#/definitions/OptionResponse"
					}
				}
			}
		},
		"SubmitResponseRequest": {
			"type": "object",
			"properties": {
				"values": {
					"type": "object",
					"additionalProperties": {
						"type": "integer"
					}
				}
			}
		},
		"SubmitResponseResponse": {
			"type": "object",
			"properties": {
				"status": {
					"type": "string"
				},
				"response_set_id": {
					"type": "string"
				},
				"vote_id": {
					"type": "string"
				},
				"identity_kind": {
					"type": "string"
				},
				"submitted_at": {
					"type": "string"
				}
			}
		},
		"ResultsResponse": {
			"type": "object",
			"properties": {
				"vote_id": {
					"type": "string"
				},
				"status": {
					"type": "string"
				},
				"response_count": {
					"type": "integer"
				},
				"results": {
					"type": "object",
					"additionalProperties": {
						"type": "object"
					}
				}
			}
		},
		"SnapshotResponse": {
			"type": "object",
			"properties": {
				"vote_id": {
					"type": "string"
				},
				"status": {
					"type": "string"
				},
				"response_count": {
					"type": "integer"
				},
				"inputs_hash": {
					"type": "string"
				},
				"taken_at": {
					"type": "string"
				}
			}
		},
		"FlagRequest": {
			"type": "object",
			"properties": {
				"flag_type": {
					"type": "string"
				},
				"reason": {
					"type": "string"
				}
			}
		},
		"FlagResponse": {
			"type": "object",
			"properties": {
				"flag_id": {
					"type": "string"
				},
				"vote_id": {
					"type": "string"
				},
				"flag_type": {
					"type": "string"
				},
				"status": {
					"type": "string"
				}
			}
		},
		"FlagListResponse": {
			"type": "object",
			"properties": {
				"items": {
					"type": "array",
					"items": {
						"$ref": "#/definitions/FlagResponse"
					}
				}
			}
		},
		"ReviewFlagRequest": {
			"type": "object",
			"properties": {
				"decision": {
					"type": "string"
				},
				"notes": {
					"type": "string"
				}
			}
		},
		"ApplyActionRequest": {
			"type": "object",
			"properties": {
				"action": {
					"type": "string"
				},
				"reason": {
					"type": "string"
				}
			}
		},
		"BulkActionRequest": {
			"type": "object",
			"properties": {
				"vote_ids": {
					"type": "array",
					"items": {
						"type": "string"
					}
				},
				"action": {
					"type": "string"
				},
				"reason": {
					"type": "string"
				}
			}
		},
		"BulkActionResponse": {
			"type": "object",
			"properties": {
				"succeeded": {
					"type": "integer"
				},
				"failed": {
					"type": "integer"
				},
				"items": {
					"type": "array",
					"items": {
						"type": "object"
					}
				}
			}
		},
		"ModerationActionListResponse": {
			"type": "object",
			"properties": {
				"items": {
					"type": "array",
					"items": {
						"type": "object"
					}
				}
			}
		},
		"HealthResponse": {
			"type": "object",
			"properties": {
				"status": {
					"type": "string"
				},
				"service": {
					"type": "string"
				}
			}
		},
		"ErrorResponse": {
			"type": "object",
			"properties": {
				"code": {
					"type": "string"
				},
				"message": {
					"type": "string"
				},
				"retry_after_seconds": {
					"type": "integer"
				}
			}
		}
	}
}`

// SwaggerInfo holds exported Swagger Info so clients can modify it
var SwaggerInfo = &swag.Spec{
	Version:          "1.0",
	Host:             "",
	BasePath:         "/",
	Schemes:          []string{},
	Title:            "pollwarden API",
	Description:      "Scored votes with per-identity submission, moderation and rate-limited admission.",
	InfoInstanceName: "swagger",
	SwaggerTemplate:  docTemplate,
	LeftDelim:        "{{",
	RightDelim:       "}}",
}

func init() {
	swag.Register(SwaggerInfo.InstanceName(), SwaggerInfo)
}
