package sdk

import (
	"context"
	"testing"
)

func TestConnectRejectsWithoutLogin(t *testing.T) {
	c := NewClient(NewConfig())
	if err := c.Stream().Connect(context.Background(), ""); err == nil {
		t.Fatal("expected misuse error connecting before login")
	}
}

func TestAccountInfoRejectsWithoutLogin(t *testing.T) {
	c := NewClient(NewConfig())
	if _, err := c.AccountInfo(context.Background()); err == nil {
		t.Fatal("expected misuse error fetching account info before login")
	}
}

func TestLoginWithCookiesThenLogoutResetsState(t *testing.T) {
	c := NewClient(NewConfig())
	if err := c.LoginWithCookies([]string{"session=abc"}); err != nil {
		t.Fatalf("LoginWithCookies: %v", err)
	}
	if !c.IsAuthenticated() {
		t.Fatal("expected authenticated after LoginWithCookies")
	}

	c.Logout()

	if c.IsAuthenticated() {
		t.Fatal("expected unauthenticated after Logout")
	}
	if err := c.Stream().Connect(context.Background(), ""); err == nil {
		t.Fatal("expected misuse error connecting after logout cleared cookies")
	}
}
