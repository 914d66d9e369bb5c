package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"enchiridion/internal/auth"
	"enchiridion/internal/domain"
)

func register(t *testing.T, e *testEnv, in RegisterInput) string {
	t.Helper()
	p, err := e.auth.Register(context.Background(), in)
	if err != nil {
		t.Fatalf("register %s: %v", in.Email, err)
	}
	return p.Email
}

func TestRegisterLoginVerifyFlow(t *testing.T) {
	e := newTestEnv(t)
	ctx := context.Background()
	e.referrer(t)

	email := register(t, e, RegisterInput{
		Email: " Bola@Enchiridion.test", Password: "correct horse", FullName: "Bola Ade",
		ReferredBy: "ADA01", IP: "10.0.0.9",
	})
	if email != "bola@enchiridion.test" {
		t.Errorf("email not normalized: %q", email)
	}
	p := e.mustPartner(t, email)
	if p.ReferralCode == "" || p.ReferredBy != "ADA01" || p.IsVerified {
		t.Errorf("registered partner = %+v", p)
	}
	if p.HashedPassword == "correct horse" {
		t.Error("password stored in clear text")
	}

	if _, _, err := e.auth.Login(ctx, email, "wrong password", "10.0.0.9"); !errors.Is(err, ErrInvalidCreds) {
		t.Errorf("wrong password err = %v", err)
	}
	_, token, err := e.auth.Login(ctx, "BOLA@enchiridion.test", "correct horse", "10.0.0.10")
	if err != nil {
		t.Fatal(err)
	}
	claims, err := auth.ParseAccessToken(&e.cfg.JWT, token)
	if err != nil || claims.Email != email || claims.PartnerID != p.ID {
		t.Fatalf("access token claims = %+v, %v", claims, err)
	}
	if got := e.mustPartner(t, email).LastIP; got != "10.0.0.10" {
		t.Errorf("last ip = %q", got)
	}

	verifyToken, err := auth.GenerateActionToken(&e.cfg.JWT, auth.AudienceVerify, p.ID, p.Email)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := e.auth.Verify(ctx, verifyToken); err != nil {
		t.Fatal(err)
	}
	ada := e.mustPartner(t, "ada@enchiridion.test")
	if ada.TotalReferrals != 1 || ada.Points != domain.PointsVerification {
		t.Errorf("referrer after verification = %+v", ada)
	}
	if _, err := e.auth.Verify(ctx, verifyToken); !errors.Is(err, ErrAlreadyVerified) {
		t.Errorf("second verify err = %v", err)
	}
}

func TestRegisterRejects(t *testing.T) {
	e := newTestEnv(t)
	e.referrer(t)
	tests := []struct {
		name string
		in   RegisterInput
		want error
	}{
		{"duplicate email", RegisterInput{Email: "ADA@enchiridion.test", Password: "longenough", FullName: "Ada"}, ErrEmailExists},
		{"short password", RegisterInput{Email: "x@enchiridion.test", Password: "short", FullName: "X"}, ErrWeakPassword},
		{"taken code", RegisterInput{Email: "y@enchiridion.test", Password: "longenough", FullName: "Y", ReferralCode: "ada01"}, ErrCodeTaken},
		{"bad code", RegisterInput{Email: "z@enchiridion.test", Password: "longenough", FullName: "Z", ReferralCode: "no spaces!"}, ErrInvalidInput},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := e.auth.Register(context.Background(), tt.in); !errors.Is(err, tt.want) {
				t.Errorf("err = %v, want %v", err, tt.want)
			}
		})
	}
}

func TestRegisterIgnoresUnknownReferrer(t *testing.T) {
	e := newTestEnv(t)
	email := register(t, e, RegisterInput{Email: "c@enchiridion.test", Password: "longenough", FullName: "Chi", ReferredBy: "GHOST"})
	if p := e.mustPartner(t, email); p.ReferredBy != "" {
		t.Errorf("referred_by = %q, want empty", p.ReferredBy)
	}
}

func TestResetPassword(t *testing.T) {
	e := newTestEnv(t)
	ctx := context.Background()
	email := register(t, e, RegisterInput{Email: "d@enchiridion.test", Password: "old password", FullName: "Dayo"})
	p := e.mustPartner(t, email)

	verifyToken, _ := auth.GenerateActionToken(&e.cfg.JWT, auth.AudienceVerify, p.ID, p.Email)
	if err := e.auth.ResetPassword(ctx, verifyToken, "new password"); !errors.Is(err, ErrInvalidToken) {
		t.Errorf("verify token accepted for reset: %v", err)
	}
	resetToken, _ := auth.GenerateActionToken(&e.cfg.JWT, auth.AudienceReset, p.ID, p.Email)
	if err := e.auth.ResetPassword(ctx, resetToken, "new password"); err != nil {
		t.Fatal(err)
	}
	if _, _, err := e.auth.Login(ctx, email, "new password", ""); err != nil {
		t.Errorf("login with new password: %v", err)
	}
	if err := e.auth.ForgotPassword(ctx, "nobody@enchiridion.test"); err != nil {
		t.Errorf("unknown email must not error, got %v", err)
	}
}

func TestRegisterSameCodeConcurrently(t *testing.T) {
	e := newTestEnv(t)
	ctx := context.Background()
	const n = 4
	errs := make([]error, n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = e.auth.Register(ctx, RegisterInput{
				Email:        fmt.Sprintf("racer%d@enchiridion.test", i),
				Password:     "password123",
				FullName:     "Race Runner",
				ReferralCode: "SAMECODE",
			})
		}(i)
	}
	wg.Wait()

	ok := 0
	for _, err := range errs {
		switch {
		case err == nil:
			ok++
		case !errors.Is(err, ErrCodeTaken):
			t.Errorf("unexpected error: %v", err)
		}
	}
	if ok != 1 {
		t.Fatalf("%d registrations got SAMECODE, want 1", ok)
	}
}
