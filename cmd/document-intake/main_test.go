package main

import (
	"context"
	"testing"

	cloudevents "github.com/cloudevents/sdk-go/v2"
)

func TestIntakeDocument_IgnoresOtherEventTypes(t *testing.T) {
	e := cloudevents.NewEvent()
	e.SetID("evt-1")
	e.SetType("google.cloud.storage.object.v1.deleted")
	// Returns before the intake function is built, so no cloud clients are needed.
	if err := intakeDocument(context.Background(), e); err != nil {
		t.Errorf("expected deleted events to be ignored, got %v", err)
	}
	if intake != nil || intakeErr != nil {
		t.Error("intake function should not be initialized for ignored events")
	}
}
