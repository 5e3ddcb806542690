package main

import (
	"bytes"
	"strings"
	"testing"

	"github.com/md-rashed-zaman/slotbook/libs/auth"
)

func TestSchemaFor(t *testing.T) {
	for _, name := range []string{"booking", " Notification "} {
		if _, err := schemaFor(name); err != nil {
			t.Fatalf("schemaFor(%q): %v", name, err)
		}
	}
	if _, err := schemaFor("billing"); err == nil || !strings.Contains(err.Error(), "booking, notification") {
		t.Fatalf("expected unknown service error listing choices, got %v", err)
	}
}

func TestTokenCommand(t *testing.T) {
	var out bytes.Buffer
	cmd := rootCmd()
	cmd.SetOut(&out)
	cmd.SetArgs([]string{"token", "--business-id", "biz-1", "--role", "staff", "--secret", "s3"})
	if err := cmd.Execute(); err != nil {
		t.Fatalf("execute: %v", err)
	}

	claims, err := auth.ParseAndVerifyHS256(strings.TrimSpace(out.String()), "s3")
	if err != nil {
		t.Fatalf("verify minted token: %v", err)
	}
	if claims.BusinessID != "biz-1" || claims.Role != "staff" || claims.Subject != "dev-user" {
		t.Fatalf("unexpected claims %+v", claims)
	}
}

func TestTokenRequiresBusiness(t *testing.T) {
	cmd := rootCmd()
	cmd.SetOut(&bytes.Buffer{})
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs([]string{"token"})
	if err := cmd.Execute(); err == nil {
		t.Fatal("expected error without --business-id")
	}
}
