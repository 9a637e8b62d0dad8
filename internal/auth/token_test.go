package auth

import (
	"errors"
	"testing"
	"time"

	"github.com/dkeye/Consult/internal/domain"
)

func newIssuer(t *testing.T) *Issuer {
	t.Helper()
	iss, err := NewIssuer("0123456789abcdef0123456789abcdef", time.Hour)
	if err != nil {
		t.Fatalf("NewIssuer: %v", err)
	}
	return iss
}

func TestIssueVerify(t *testing.T) {
	iss := newIssuer(t)
	token, err := iss.Issue(Claims{User: "u-1", Name: "Dr. Who", Kind: domain.Specialist, Room: "apt-7"})
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}

	c, err := iss.Verify(token, "apt-7")
	if err != nil {
		t.Fatalf("Verify: %v", err)
	}
	if c.User != "u-1" || c.Kind != domain.Specialist || c.Issued == 0 {
		t.Errorf("unexpected claims %+v", c)
	}
	u, err := c.Participant()
	if err != nil || u.Username != "Dr. Who" {
		t.Errorf("Participant() = %+v, %v", u, err)
	}

	if _, err := iss.Verify(token, ""); err != nil {
		t.Errorf("Verify without room: %v", err)
	}
}

func TestVerifyRejects(t *testing.T) {
	iss := newIssuer(t)
	token, err := iss.Issue(Claims{User: "u-1", Kind: domain.Patient, Room: "apt-7"})
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}

	if _, err := iss.Verify(token, "apt-8"); !errors.Is(err, ErrWrongRoom) {
		t.Errorf("expected ErrWrongRoom, got %v", err)
	}
	if _, err := iss.Verify(token[:len(token)-2]+"xx", "apt-7"); !errors.Is(err, ErrInvalidToken) {
		t.Errorf("expected ErrInvalidToken for tampered token, got %v", err)
	}

	other, _ := NewIssuer("another-secret-another-secret-00", time.Hour)
	if _, err := other.Verify(token, "apt-7"); !errors.Is(err, ErrInvalidToken) {
		t.Errorf("expected ErrInvalidToken for foreign key, got %v", err)
	}
}

func TestIssueValidatesClaims(t *testing.T) {
	iss := newIssuer(t)
	if _, err := iss.Issue(Claims{User: "u-1"}); err == nil {
		t.Error("token without room must be refused")
	}
	if _, err := iss.Issue(Claims{Room: "apt-1"}); err == nil {
		t.Error("token without user must be refused")
	}
	if _, err := NewIssuer("", time.Hour); !errors.Is(err, ErrNoSecret) {
		t.Errorf("expected ErrNoSecret, got %v", err)
	}
}
