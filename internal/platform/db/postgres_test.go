package db

import "testing"

func TestConnectRequiresDSN(t *testing.T) {
	if _, err := Connect("", DefaultPoolOptions()); err == nil {
		t.Fatalf("expected empty dsn to fail")
	}
}

func TestCloseNilIsNoop(t *testing.T) {
	var pg *Postgres
	if err := pg.Close(); err != nil {
		t.Fatalf("expected nil close to succeed, got %v", err)
	}
}
