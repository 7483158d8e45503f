package voteengine

import (
	"log/slog"

	httpadapter "pollwarden/contexts/polling/vote-engine/adapters/http"
	"pollwarden/contexts/polling/vote-engine/adapters/memory"
	"pollwarden/contexts/polling/vote-engine/application/commands"
	"pollwarden/contexts/polling/vote-engine/application/queries"
	"pollwarden/contexts/polling/vote-engine/domain/entities"
	"pollwarden/contexts/polling/vote-engine/ports"

	"golang.org/x/sync/singleflight"
)

type Module struct {
	Handler httpadapter.Handler
	Store   *memory.Store
}

type Dependencies struct {
	Votes                  ports.VoteRepository
	Responses              ports.ResponseRepository
	Flags                  ports.FlagRepository
	Actions                ports.ModerationRepository
	Snapshots              ports.SnapshotRepository
	Clock                  ports.Clock
	IDGen                  ports.IDGenerator
	ScorePolicy            entities.ScorePolicy
	FreezeOptionsOnPublish bool
	MaxBatchSize           int
	BulkConcurrency        int
	SlugSalt               string
	Logger                 *slog.Logger
}

func NewModule(deps Dependencies) Module {
	results := queries.ResultsUseCase{
		Votes:     deps.Votes,
		Responses: deps.Responses,
		Snapshots: deps.Snapshots,
		Flight:    &singleflight.Group{},
	}
	return Module{
		Handler: httpadapter.Handler{
			Lifecycle: commands.LifecycleUseCase{
				Votes:                  deps.Votes,
				Clock:                  deps.Clock,
				IDGen:                  deps.IDGen,
				SlugSalt:               deps.SlugSalt,
				FreezeOptionsOnPublish: deps.FreezeOptionsOnPublish,
				Logger:                 deps.Logger,
			},
			Submissions: commands.SubmissionUseCase{
				Responses:   deps.Responses,
				Clock:       deps.Clock,
				IDGen:       deps.IDGen,
				ScorePolicy: deps.ScorePolicy,
				Logger:      deps.Logger,
			},
			Moderation: commands.ModerationUseCase{
				Votes:           deps.Votes,
				Flags:           deps.Flags,
				Clock:           deps.Clock,
				IDGen:           deps.IDGen,
				MaxBatchSize:    deps.MaxBatchSize,
				BulkConcurrency: deps.BulkConcurrency,
				Logger:          deps.Logger,
			},
			Results: results,
			Queries: queries.VoteQueryUseCase{
				Votes:   deps.Votes,
				Flags:   deps.Flags,
				Actions: deps.Actions,
			},
			Logger: deps.Logger,
		},
	}
}

// NewInMemoryModule wires every port to one memory store with the default
// score range and frozen options.
func NewInMemoryModule(seed []entities.Vote, logger *slog.Logger) Module {
	store := memory.NewStore(seed)
	module := NewModule(Dependencies{
		Votes:                  store,
		Responses:              store,
		Flags:                  store,
		Actions:                store,
		Snapshots:              store,
		Clock:                  store,
		IDGen:                  store,
		ScorePolicy:            entities.DefaultScorePolicy(),
		FreezeOptionsOnPublish: true,
		SlugSalt:               "pollwarden-dev-slug",
		Logger:                 logger,
	})
	module.Store = store
	return module
}
