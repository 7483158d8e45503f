// Package voteengine implements the vote lifecycle and submission integrity
// engine inside the polling context.
//
// The module owns the vote state machine (draft, active, closed, plus the
// moderation-only disabled and hidden states), the one-response-set-per-
// identity guard, flag intake and review, operator moderation actions with
// their append-only audit trail, and lazily computed per-option results.
// Business rules live in the domain and application layers; storage, event
// relay and transport sit behind ports and adapters.
package voteengine
