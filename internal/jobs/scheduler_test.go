package jobs

import (
	"testing"
	"time"
)

func TestValidateCron(t *testing.T) {
	tests := []struct {
		expr    string
		wantErr bool
	}{
		{"0 2 * * *", false},
		{"*/5 * * * *", false},
		{"30 14 1 * *", false},
		{"61 * * * *", true},
		{"every day", true},
		{"0 2 * * * *", true},
		{"", true},
	}

	for _, tt := range tests {
		err := ValidateCron(tt.expr)
		if tt.wantErr && err == nil {
			t.Errorf("ValidateCron(%q): expected error, got nil", tt.expr)
		}
		if !tt.wantErr && err != nil {
			t.Errorf("ValidateCron(%q): unexpected error %v", tt.expr, err)
		}
	}
}

func TestSchedulerRegistersAndReportsStatus(t *testing.T) {
	scheduler, err := NewScheduler()
	if err != nil {
		t.Fatalf("Failed to create scheduler: %v", err)
	}

	if err := scheduler.AddIntervalJob("warm", time.Hour, func() {}); err != nil {
		t.Fatalf("Failed to add interval job: %v", err)
	}
	if err := scheduler.AddCronJob("cleanup", "0 2 * * *", func() {}); err != nil {
		t.Fatalf("Failed to add cron job: %v", err)
	}

	status := scheduler.Status()
	if len(status) != 2 {
		t.Fatalf("Expected 2 jobs, got %d", len(status))
	}
	if status[0].Name != "cleanup" || status[1].Name != "warm" {
		t.Errorf("Expected jobs sorted by name, got %s, %s", status[0].Name, status[1].Name)
	}

	scheduler.Start()
	defer scheduler.Stop()

	// next-run times appear shortly after start
	deadline := time.Now().Add(2 * time.Second)
	for {
		status = scheduler.Status()
		if status[0].NextRun != nil && status[1].NextRun != nil {
			break
		}
		if time.Now().After(deadline) {
			t.Fatal("Expected next-run times after start")
		}
		time.Sleep(10 * time.Millisecond)
	}

	if status[1].NextRun.Before(time.Now()) {
		t.Errorf("Expected interval job scheduled in the future, got %v", status[1].NextRun)
	}
}

func TestSchedulerRejectsBadCron(t *testing.T) {
	scheduler, err := NewScheduler()
	if err != nil {
		t.Fatalf("Failed to create scheduler: %v", err)
	}

	if err := scheduler.AddCronJob("broken", "not a cron", func() {}); err == nil {
		t.Fatal("Expected error for invalid cron expression")
	}
	if len(scheduler.Status()) != 0 {
		t.Error("Expected no jobs registered after rejection")
	}
}
