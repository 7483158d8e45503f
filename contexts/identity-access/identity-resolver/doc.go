// Package identityresolver derives the participant identity a vote
// submission is counted against.
package identityresolver
