package main

import (
	"context"
	"errors"
	"testing"
)

type fakeSender struct {
	last *HistoryEvent
	fail bool
}

func (f *fakeSender) Send(_ context.Context, ev *HistoryEvent) error {
	if f.fail {
		return errors.New("send fail")
	}
	f.last = ev
	return nil
}

func TestConnectionHub_RegisterAndSend(t *testing.T) {
	hub := NewConnectionHub()

	senderA := &fakeSender{}
	senderB := &fakeSender{}

	idA := hub.Register("u1", senderA)
	_ = hub.Register("u1", senderB) // second connection

	ev := &HistoryEvent{Type: EventHistoryUpdated, ChatID: "c1", MessageCount: 2}
	if err := hub.SendToUser(context.Background(), "u1", ev); err != nil {
		t.Fatalf("expected send success, got error: %v", err)
	}
	if senderA.last == nil || senderA.last.ChatID != "c1" {
		t.Fatalf("sender A did not receive event")
	}
	if senderB.last == nil || senderB.last.ChatID != "c1" {
		t.Fatalf("sender B did not receive event")
	}

	// Unregister senderA and ensure it no longer receives events
	hub.Unregister("u1", idA)

	if err := hub.SendToUser(context.Background(), "u1", &HistoryEvent{ChatID: "c2"}); err != nil {
		t.Fatalf("expected send success after unregistering one connection: %v", err)
	}
	if senderA.last.ChatID == "c2" {
		t.Fatalf("sender A should not have received second event after unregister")
	}
}

func TestConnectionHub_SendToOffline(t *testing.T) {
	hub := NewConnectionHub()

	if hub.Connected("nobody") {
		t.Fatalf("expected nobody to be offline")
	}
	if err := hub.SendToUser(context.Background(), "nobody", &HistoryEvent{}); err == nil {
		t.Fatalf("expected error when sending to offline user")
	}
}

func TestConnectionHub_SendPartialFailure(t *testing.T) {
	hub := NewConnectionHub()

	ok := &fakeSender{}
	bad := &fakeSender{fail: true}

	_ = hub.Register("u2", ok)
	_ = hub.Register("u2", bad)

	if err := hub.SendToUser(context.Background(), "u2", &HistoryEvent{ChatID: "x"}); err == nil {
		t.Fatalf("expected error due to partial sender failure")
	}

	// the failing connection was unregistered
	if err := hub.SendToUser(context.Background(), "u2", &HistoryEvent{ChatID: "y"}); err != nil {
		t.Fatalf("expected send to succeed after cleanup of failed connections: %v", err)
	}
	if ok.last == nil || ok.last.ChatID != "y" {
		t.Fatalf("healthy sender did not receive event after cleanup")
	}
}

func TestOriginHosts(t *testing.T) {
	got := originHosts([]string{"https://app.example.com", "*", "not a url"})
	if len(got) != 2 || got[0] != "app.example.com" || got[1] != "*" {
		t.Fatalf("unexpected hosts: %v", got)
	}
}
