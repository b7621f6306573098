package health

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestRunAggregates(t *testing.T) {
	c := New(time.Second)
	c.Register("good", func(ctx context.Context) error { return nil })
	c.Register("bad", func(ctx context.Context) error { return errors.New("backend down") })

	report := c.Run(context.Background())
	if report.Status != "degraded" {
		t.Errorf("Status = %q, want degraded", report.Status)
	}
	if report.Checks["good"].Status != "ok" {
		t.Errorf("good = %+v", report.Checks["good"])
	}
	if report.Checks["bad"].Status != "unhealthy" || report.Checks["bad"].Message != "backend down" {
		t.Errorf("bad = %+v", report.Checks["bad"])
	}
}

func TestRunEmpty(t *testing.T) {
	report := New(0).Run(context.Background())
	if report.Status != "ok" {
		t.Errorf("Status = %q, want ok for empty checker", report.Status)
	}
}

func TestRunTimeout(t *testing.T) {
	c := New(20 * time.Millisecond)
	c.Register("slow", func(ctx context.Context) error {
		select {
		case <-time.After(time.Second):
			return nil
		case <-ctx.Done():
			return ctx.Err()
		}
	})

	report := c.Run(context.Background())
	if report.Checks["slow"].Status != "unhealthy" {
		t.Errorf("slow = %+v, want unhealthy on timeout", report.Checks["slow"])
	}
}

func TestRegisterReplaces(t *testing.T) {
	c := New(time.Second)
	c.Register("x", func(ctx context.Context) error { return errors.New("old") })
	c.Register("x", func(ctx context.Context) error { return nil })

	report := c.Run(context.Background())
	if report.Checks["x"].Status != "ok" {
		t.Errorf("x = %+v, want replacement check to run", report.Checks["x"])
	}
}
