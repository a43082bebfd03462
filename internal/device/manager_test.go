package device

import (
	"context"
	"testing"
	"time"

	"github.com/muurk/signctl/internal/config"
	"github.com/muurk/signctl/internal/simulator"
	"github.com/muurk/signctl/internal/transport/transporttest"
)

func TestManagerEventsAndSummaries(t *testing.T) {
	m := NewManager()
	events, unsubscribe := m.Subscribe(256)
	defer unsubscribe()

	for _, name := range []string{"b", "a"} {
		sim := simulator.New(simulator.Options{Seed: 0x10, SeedOffset: "20", PasswordOffset: "5A5A"})
		opts := testOptions()
		opts.Name = name
		if _, err := m.Add(transporttest.NewMock(sim.Respond), opts); err != nil {
			t.Fatalf("Add(%s) error = %v", name, err)
		}
	}
	if _, err := m.Add(transporttest.NewMock(nil), Options{Name: "a"}); err == nil {
		t.Error("duplicate Add should fail")
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- m.Run(ctx) }()

	waitCtx, waitCancel := context.WithTimeout(ctx, 2*time.Second)
	defer waitCancel()
	if err := m.WaitReady(waitCtx); err != nil {
		t.Fatalf("WaitReady() error = %v", err)
	}

	sums := m.Summaries()
	if len(sums) != 2 || sums[0].Name != "a" || sums[1].Name != "b" {
		t.Fatalf("Summaries() = %+v", sums)
	}
	for _, s := range sums {
		if !s.Ready || s.State != "active" || s.Transport != "mock://" {
			t.Errorf("summary = %+v", s)
		}
	}

	active := map[string]bool{}
	configured := map[string]bool{}
	timeout := time.After(2 * time.Second)
	for len(active) < 2 || len(configured) < 2 {
		select {
		case e := <-events:
			switch {
			case e.Kind == EventState && e.State == "active":
				active[e.Device] = true
			case e.Kind == EventConfiguration && e.Signs == 4:
				configured[e.Device] = true
			}
		case <-timeout:
			t.Fatalf("events: active=%v configured=%v", active, configured)
		}
	}

	cancel()
	<-done
	for range events {
	}
}

func TestFromRegistry(t *testing.T) {
	reg := config.NewRegistry()
	_ = reg.AddDevice("gantry", &config.Device{Host: "127.0.0.1", Port: 4001, Address: "01", SeedOffset: "20", PasswordOffset: "5A5A"})
	_ = reg.AddDevice("spare", &config.Device{Host: "127.0.0.1", Port: 4002, Address: "02", SeedOffset: "00", PasswordOffset: "0000", Disabled: true})
	reg.Preferences.HeartbeatInterval = config.Duration(9 * time.Second)

	m, err := FromRegistry(reg)
	if err != nil {
		t.Fatalf("FromRegistry() error = %v", err)
	}
	if names := m.Names(); len(names) != 1 || names[0] != "gantry" {
		t.Errorf("Names() = %v, want only enabled devices", names)
	}
	s, _ := m.Get("gantry")
	if s.opts.HeartbeatInterval != 9*time.Second || s.opts.Address != "01" {
		t.Errorf("options = %+v", s.opts)
	}
	if s.Transport().String() != "tcp://127.0.0.1:4001" {
		t.Errorf("transport = %s", s.Transport())
	}

	m, err = FromRegistry(reg, "spare")
	if err != nil {
		t.Fatalf("FromRegistry(spare) error = %v", err)
	}
	if _, ok := m.Get("spare"); !ok {
		t.Error("explicitly named disabled device should be added")
	}

	if _, err := FromRegistry(reg, "missing"); err == nil {
		t.Error("unknown device should fail")
	}
}
