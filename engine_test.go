package goidentity

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestRegister(t *testing.T) {
	engine, directory, notifier := newTestEngine(t)
	ctx := context.Background()

	subject, err := engine.Register(ctx, RegisterInput{Email: "  User@Example.COM ", Password: "correct horse battery staple"})
	if err != nil {
		t.Fatalf("Register failed: %v", err)
	}
	if subject.Email != "user@example.com" {
		t.Fatalf("email not normalized: %q", subject.Email)
	}
	if subject.Status != StatusUnverified {
		t.Fatalf("fresh subject not unverified: %v", subject.Status)
	}
	if subject.PasswordDigest == "correct horse battery staple" {
		t.Fatal("plaintext stored as digest")
	}

	msg := notifier.last(t)
	if msg.Purpose != PurposeVerifyEmail || msg.Recipient != "user@example.com" || msg.Token == "" {
		t.Fatalf("unexpected delivery: %+v", msg)
	}

	if _, err := engine.Register(ctx, RegisterInput{Email: "user@example.com", Password: "another password"}); !errors.Is(err, ErrDuplicateEmail) {
		t.Fatalf("expected ErrDuplicateEmail, got %v", err)
	}
	if directory.createCalls != 1 {
		t.Fatalf("duplicate registration reached the directory: %d creates", directory.createCalls)
	}
}

func TestLogin(t *testing.T) {
	engine, directory, _ := newTestEngine(t)
	ctx := context.Background()

	registerActive(t, engine, directory, "user@example.com", "correct horse battery staple")

	t.Run("success", func(t *testing.T) {
		pair, err := engine.Login(ctx, "user@example.com", "correct horse battery staple")
		if err != nil {
			t.Fatalf("Login failed: %v", err)
		}
		if pair.AccessToken == "" || pair.RefreshToken == "" {
			t.Fatal("incomplete token pair")
		}
		if pair.AccessToken == pair.RefreshToken {
			t.Fatal("access and refresh tokens identical")
		}
	})

	t.Run("wrong password", func(t *testing.T) {
		if _, err := engine.Login(ctx, "user@example.com", "wrong password"); !errors.Is(err, ErrInvalidCredentials) {
			t.Fatalf("expected ErrInvalidCredentials, got %v", err)
		}
	})

	t.Run("unknown email is indistinguishable", func(t *testing.T) {
		if _, err := engine.Login(ctx, "ghost@example.com", "correct horse battery staple"); !errors.Is(err, ErrInvalidCredentials) {
			t.Fatalf("expected ErrInvalidCredentials, got %v", err)
		}
	})
}

func TestLoginLifecycleStatus(t *testing.T) {
	ctx := context.Background()

	t.Run("unverified rejected by default", func(t *testing.T) {
		engine, _, _ := newTestEngine(t)
		if _, err := engine.Register(ctx, RegisterInput{Email: "user@example.com", Password: "correct horse battery staple"}); err != nil {
			t.Fatalf("Register failed: %v", err)
		}
		if _, err := engine.Login(ctx, "user@example.com", "correct horse battery staple"); !errors.Is(err, ErrAccountNotActive) {
			t.Fatalf("expected ErrAccountNotActive, got %v", err)
		}
	})

	t.Run("unverified admitted when policy allows", func(t *testing.T) {
		directory := newMockDirectory()
		cfg := testEngineConfig()
		cfg.Login.AllowUnverified = true
		engine, err := NewBuilder().
			WithConfig(cfg).
			WithRedis(newTestRedis(t)).
			WithDirectory(directory).
			Build()
		if err != nil {
			t.Fatalf("Build failed: %v", err)
		}

		if _, err := engine.Register(ctx, RegisterInput{Email: "user@example.com", Password: "correct horse battery staple"}); err != nil {
			t.Fatalf("Register failed: %v", err)
		}
		if _, err := engine.Login(ctx, "user@example.com", "correct horse battery staple"); err != nil {
			t.Fatalf("Login failed: %v", err)
		}
	})

	t.Run("suspended always rejected", func(t *testing.T) {
		engine, directory, _ := newTestEngine(t)
		subject := registerActive(t, engine, directory, "user@example.com", "correct horse battery staple")
		if err := directory.UpdateStatus(ctx, subject.ID, StatusSuspended); err != nil {
			t.Fatalf("UpdateStatus failed: %v", err)
		}
		if _, err := engine.Login(ctx, "user@example.com", "correct horse battery staple"); !errors.Is(err, ErrAccountNotActive) {
			t.Fatalf("expected ErrAccountNotActive, got %v", err)
		}
	})
}

func TestVerify(t *testing.T) {
	engine, directory, _ := newTestEngine(t)
	ctx := context.Background()

	subject := registerActive(t, engine, directory, "user@example.com", "correct horse battery staple")
	if err := directory.AssignRole(ctx, subject.ID, "developer"); err != nil {
		t.Fatalf("AssignRole failed: %v", err)
	}

	pair, err := engine.Login(ctx, "user@example.com", "correct horse battery staple")
	if err != nil {
		t.Fatalf("Login failed: %v", err)
	}

	user, err := engine.Verify(ctx, pair.AccessToken)
	if err != nil {
		t.Fatalf("Verify failed: %v", err)
	}
	if user.SubjectID != subject.ID {
		t.Fatalf("wrong subject: %q", user.SubjectID)
	}
	if !user.HasRole("developer") {
		t.Fatalf("role missing: %+v", user.Roles)
	}
	if !user.HasPermission("user.update") {
		t.Fatalf("derived permission missing: %+v", user.Permissions)
	}

	t.Run("refresh token rejected on verify", func(t *testing.T) {
		if _, err := engine.Verify(ctx, pair.RefreshToken); !errors.Is(err, ErrTokenInvalid) {
			t.Fatalf("expected ErrTokenInvalid, got %v", err)
		}
	})

	t.Run("garbage rejected", func(t *testing.T) {
		if _, err := engine.Verify(ctx, "not.a.token"); !errors.Is(err, ErrTokenInvalid) {
			t.Fatalf("expected ErrTokenInvalid, got %v", err)
		}
	})
}

func TestRefresh(t *testing.T) {
	engine, directory, _ := newTestEngine(t)
	ctx := context.Background()

	registerActive(t, engine, directory, "user@example.com", "correct horse battery staple")
	pair, err := engine.Login(ctx, "user@example.com", "correct horse battery staple")
	if err != nil {
		t.Fatalf("Login failed: %v", err)
	}

	next, err := engine.Refresh(ctx, pair.AccessToken, pair.RefreshToken)
	if err != nil {
		t.Fatalf("Refresh failed: %v", err)
	}
	if next.RefreshToken == pair.RefreshToken {
		t.Fatal("refresh token not rotated")
	}

	// Both the old and the new access token stay usable while the session
	// lives; access tokens are bounded by TTL, not rotation.
	if _, err := engine.Verify(ctx, pair.AccessToken); err != nil {
		t.Fatalf("pre-rotation access token rejected: %v", err)
	}
	if _, err := engine.Verify(ctx, next.AccessToken); err != nil {
		t.Fatalf("post-rotation access token rejected: %v", err)
	}

	t.Run("superseded refresh token is replay", func(t *testing.T) {
		if _, err := engine.Refresh(ctx, pair.AccessToken, pair.RefreshToken); !errors.Is(err, ErrTokenReused) {
			t.Fatalf("expected ErrTokenReused, got %v", err)
		}
	})

	t.Run("current refresh token still works after replay", func(t *testing.T) {
		after, err := engine.Refresh(ctx, next.AccessToken, next.RefreshToken)
		if err != nil {
			t.Fatalf("Refresh failed: %v", err)
		}
		if after.RefreshToken == next.RefreshToken {
			t.Fatal("refresh token not rotated")
		}
	})
}

func TestRefreshPairMismatch(t *testing.T) {
	engine, directory, _ := newTestEngine(t)
	ctx := context.Background()

	registerActive(t, engine, directory, "a@example.com", "correct horse battery staple")
	registerActive(t, engine, directory, "b@example.com", "correct horse battery staple")

	pairA, err := engine.Login(ctx, "a@example.com", "correct horse battery staple")
	if err != nil {
		t.Fatalf("Login failed: %v", err)
	}
	pairB, err := engine.Login(ctx, "b@example.com", "correct horse battery staple")
	if err != nil {
		t.Fatalf("Login failed: %v", err)
	}

	if _, err := engine.Refresh(ctx, pairA.AccessToken, pairB.RefreshToken); !errors.Is(err, ErrPairMismatch) {
		t.Fatalf("expected ErrPairMismatch, got %v", err)
	}

	// The failed mismatch must not burn either session.
	if _, err := engine.Refresh(ctx, pairA.AccessToken, pairA.RefreshToken); err != nil {
		t.Fatalf("session A damaged by mismatch attempt: %v", err)
	}
	if _, err := engine.Refresh(ctx, pairB.AccessToken, pairB.RefreshToken); err != nil {
		t.Fatalf("session B damaged by mismatch attempt: %v", err)
	}
}

func TestRefreshRejectsGarbage(t *testing.T) {
	engine, directory, _ := newTestEngine(t)
	ctx := context.Background()

	registerActive(t, engine, directory, "user@example.com", "correct horse battery staple")
	pair, err := engine.Login(ctx, "user@example.com", "correct horse battery staple")
	if err != nil {
		t.Fatalf("Login failed: %v", err)
	}

	if _, err := engine.Refresh(ctx, pair.AccessToken, "not.a.token"); !errors.Is(err, ErrTokenInvalid) {
		t.Fatalf("expected ErrTokenInvalid, got %v", err)
	}
	if _, err := engine.Refresh(ctx, "not.a.token", pair.RefreshToken); !errors.Is(err, ErrTokenInvalid) {
		t.Fatalf("expected ErrTokenInvalid, got %v", err)
	}
	// Swapped kinds must not pass either.
	if _, err := engine.Refresh(ctx, pair.RefreshToken, pair.AccessToken); !errors.Is(err, ErrTokenInvalid) {
		t.Fatalf("expected ErrTokenInvalid, got %v", err)
	}
}

func TestLogout(t *testing.T) {
	engine, directory, _ := newTestEngine(t)
	ctx := context.Background()

	registerActive(t, engine, directory, "user@example.com", "correct horse battery staple")
	pair, err := engine.Login(ctx, "user@example.com", "correct horse battery staple")
	if err != nil {
		t.Fatalf("Login failed: %v", err)
	}

	if err := engine.Logout(ctx, pair.AccessToken); err != nil {
		t.Fatalf("Logout failed: %v", err)
	}

	if _, err := engine.Verify(ctx, pair.AccessToken); !errors.Is(err, ErrSessionRevoked) {
		t.Fatalf("expected ErrSessionRevoked, got %v", err)
	}
	if _, err := engine.Refresh(ctx, pair.AccessToken, pair.RefreshToken); !errors.Is(err, ErrSessionRevoked) {
		t.Fatalf("expected ErrSessionRevoked, got %v", err)
	}

	// Logging out twice is fine.
	if err := engine.Logout(ctx, pair.AccessToken); err != nil {
		t.Fatalf("second Logout failed: %v", err)
	}
}

func TestLogoutLeavesOtherSessionsAlone(t *testing.T) {
	engine, directory, _ := newTestEngine(t)
	ctx := context.Background()

	registerActive(t, engine, directory, "user@example.com", "correct horse battery staple")

	first, err := engine.Login(ctx, "user@example.com", "correct horse battery staple")
	if err != nil {
		t.Fatalf("Login failed: %v", err)
	}
	second, err := engine.Login(ctx, "user@example.com", "correct horse battery staple")
	if err != nil {
		t.Fatalf("Login failed: %v", err)
	}

	if err := engine.Logout(ctx, first.AccessToken); err != nil {
		t.Fatalf("Logout failed: %v", err)
	}

	if _, err := engine.Verify(ctx, second.AccessToken); err != nil {
		t.Fatalf("unrelated session died with logout: %v", err)
	}
}

func TestEngineMetrics(t *testing.T) {
	engine, directory, _ := newTestEngine(t)
	ctx := context.Background()

	registerActive(t, engine, directory, "user@example.com", "correct horse battery staple")

	if _, err := engine.Login(ctx, "user@example.com", "wrong password"); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("expected ErrInvalidCredentials, got %v", err)
	}
	pair, err := engine.Login(ctx, "user@example.com", "correct horse battery staple")
	if err != nil {
		t.Fatalf("Login failed: %v", err)
	}
	if _, err := engine.Verify(ctx, pair.AccessToken); err != nil {
		t.Fatalf("Verify failed: %v", err)
	}

	m := engine.Metrics()
	if m.Value(MetricLoginSuccess) != 1 {
		t.Fatalf("login success counter = %d", m.Value(MetricLoginSuccess))
	}
	if m.Value(MetricLoginFailure) != 1 {
		t.Fatalf("login failure counter = %d", m.Value(MetricLoginFailure))
	}
	if m.Value(MetricSessionOpened) != 1 {
		t.Fatalf("session opened counter = %d", m.Value(MetricSessionOpened))
	}

	snapshot := engine.MetricsSnapshot()
	if snapshot.Counters[MetricVerifySuccess] != 1 {
		t.Fatalf("verify success counter = %d", snapshot.Counters[MetricVerifySuccess])
	}

	var histTotal uint64
	for _, v := range snapshot.Histograms[MetricVerifyLatency] {
		histTotal += v
	}
	if histTotal != 1 {
		t.Fatalf("verify latency samples = %d", histTotal)
	}
}

func TestBuilderValidation(t *testing.T) {
	directory := newMockDirectory()

	t.Run("missing redis", func(t *testing.T) {
		if _, err := NewBuilder().WithConfig(testEngineConfig()).WithDirectory(directory).Build(); err == nil {
			t.Fatal("expected error")
		}
	})

	t.Run("missing directory", func(t *testing.T) {
		if _, err := NewBuilder().WithConfig(testEngineConfig()).WithRedis(newTestRedis(t)).Build(); err == nil {
			t.Fatal("expected error")
		}
	})

	t.Run("missing signing secret", func(t *testing.T) {
		cfg := testEngineConfig()
		cfg.Token.SigningSecret = nil
		if _, err := NewBuilder().WithConfig(cfg).WithRedis(newTestRedis(t)).WithDirectory(directory).Build(); err == nil {
			t.Fatal("expected error")
		}
	})
}

func TestRefreshWithExpiredAccessToken(t *testing.T) {
	directory := newMockDirectory()
	cfg := testEngineConfig()
	cfg.Token.AccessTTL = 30 * time.Millisecond

	engine, err := NewBuilder().
		WithConfig(cfg).
		WithRedis(newTestRedis(t)).
		WithDirectory(directory).
		Build()
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}

	ctx := context.Background()
	registerActive(t, engine, directory, "user@example.com", "correct horse battery staple")
	pair, err := engine.Login(ctx, "user@example.com", "correct horse battery staple")
	if err != nil {
		t.Fatalf("Login failed: %v", err)
	}

	time.Sleep(60 * time.Millisecond)

	// The access token is dead for requests but still anchors the pair.
	if _, err := engine.Verify(ctx, pair.AccessToken); !errors.Is(err, ErrTokenExpired) {
		t.Fatalf("expected ErrTokenExpired from Verify, got %v", err)
	}
	next, err := engine.Refresh(ctx, pair.AccessToken, pair.RefreshToken)
	if err != nil {
		t.Fatalf("Refresh with expired access token failed: %v", err)
	}
	if _, err := engine.Verify(ctx, next.AccessToken); err != nil {
		t.Fatalf("rotated access token rejected: %v", err)
	}
}
