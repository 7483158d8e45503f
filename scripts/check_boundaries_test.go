package main

import (
	"os"
	"path/filepath"
	"testing"
)

func writeSource(t *testing.T, root string, rel string, body string) {
	t.Helper()
	path := filepath.Join(root, filepath.FromSlash(rel))
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatalf("write %s: %v", rel, err)
	}
}

func TestCollectViolations(t *testing.T) {
	dir := t.TempDir()
	writeSource(t, dir, "contexts/polling/vote-engine/domain/entities/vote.go", `package entities

import (
	"time"

	"pollwarden/internal/platform/db"
)

var _ = time.Now
var _ = db.Connect
`)
	writeSource(t, dir, "contexts/polling/vote-engine/application/queries/results.go", `package queries

import (
	"golang.org/x/sync/singleflight"

	"pollwarden/contexts/polling/vote-engine/domain/entities"
	"pollwarden/contexts/identity-access/identity-resolver/application"
)
`)
	writeSource(t, dir, "contexts/polling/vote-engine/adapters/postgres/repo.go", `package postgres

import "gorm.io/gorm"
`)
	writeSource(t, dir, "contexts/polling/vote-engine/application/queries/results_test.go", `package queries

import "pollwarden/internal/platform/db"
`)

	violations := collectViolations(filepath.Join(dir, "contexts"))
	rules := map[string]int{}
	for _, v := range violations {
		rules[v.Rule]++
	}
	if rules["domain must not import runtime infrastructure"] != 1 {
		t.Fatalf("expected one infrastructure violation in domain, got %+v", violations)
	}
	if rules["cross-module imports are forbidden"] != 1 {
		t.Fatalf("expected one cross-module violation, got %+v", violations)
	}
	for _, v := range violations {
		if v.Import == "golang.org/x/sync/singleflight" {
			t.Fatalf("expected x/sync to be allowed in application, got %+v", v)
		}
		if v.Import == "gorm.io/gorm" {
			t.Fatalf("expected adapters to import drivers freely, got %+v", v)
		}
	}
}

func TestPortsAndTransportStayThin(t *testing.T) {
	dir := t.TempDir()
	writeSource(t, dir, "contexts/polling/vote-engine/ports/ports.go", `package ports

import (
	"context"

	"github.com/cenkalti/backoff/v4"

	"pollwarden/contexts/polling/vote-engine/domain/entities"
)
`)
	writeSource(t, dir, "contexts/polling/vote-engine/transport/http/dto.go", `package http

import "pollwarden/contexts/polling/vote-engine/adapters/memory"
`)
	writeSource(t, dir, "contexts/polling/vote-engine/module.go", `package voteengine

import "pollwarden/internal/platform/db"
`)

	violations := collectViolations(filepath.Join(dir, "contexts"))
	if len(violations) != 3 {
		t.Fatalf("expected 3 violations, got %+v", violations)
	}
	rules := map[string]string{}
	for _, v := range violations {
		rules[v.Rule] = v.Import
	}
	if rules["ports import is outside explicit allowlist"] != "github.com/cenkalti/backoff/v4" {
		t.Fatalf("expected ports to reject libraries, got %+v", violations)
	}
	if rules["transport must not import adapters"] != "pollwarden/contexts/polling/vote-engine/adapters/memory" {
		t.Fatalf("expected transport to reject adapters, got %+v", violations)
	}
	if _, ok := rules["transport import is outside explicit allowlist"]; !ok {
		t.Fatalf("expected transport allowlist violation, got %+v", violations)
	}
}

func TestRunReportsViolations(t *testing.T) {
	dir := t.TempDir()
	writeSource(t, dir, "contexts/polling/vote-engine/domain/entities/vote.go", `package entities

import "gorm.io/gorm"
`)
	if err := run([]string{"--root", filepath.Join(dir, "contexts")}); err == nil {
		t.Fatalf("expected run to fail on a domain gorm import")
	}

	clean := t.TempDir()
	writeSource(t, clean, "contexts/polling/vote-engine/domain/entities/vote.go", `package entities

import "time"
`)
	if err := run([]string{"--root", filepath.Join(clean, "contexts")}); err != nil {
		t.Fatalf("expected clean tree to pass, got %v", err)
	}
}

func TestIsStdlib(t *testing.T) {
	if !isStdlib("net/netip", "pollwarden") {
		t.Fatalf("expected net/netip to be stdlib")
	}
	if isStdlib("pollwarden/internal/platform/db", "pollwarden") || isStdlib("github.com/redis/go-redis/v9", "pollwarden") {
		t.Fatalf("expected module and third-party paths to be non-stdlib")
	}
}
