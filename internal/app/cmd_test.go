package app

import (
	"strings"
	"testing"
)

func TestParseArgs(t *testing.T) {
	tests := []struct {
		name      string
		args      []string
		want      Invocation
		wantErrIn string
	}{
		{"引数なしはserve", nil, Invocation{Command: CommandServe}, ""},
		{"serve", []string{"serve"}, Invocation{Command: CommandServe}, ""},
		{"worker", []string{"worker"}, Invocation{Command: CommandWorker}, ""},
		{"healthcheck", []string{"healthcheck"}, Invocation{Command: CommandHealthcheck}, ""},
		{"migrateは適用", []string{"migrate"}, Invocation{Command: CommandMigrate}, ""},
		{"migrate up", []string{"migrate", "up"}, Invocation{Command: CommandMigrate}, ""},
		{"migrate downは1件", []string{"migrate", "down"}, Invocation{Command: CommandMigrate, RollbackSteps: 1}, ""},
		{"migrate down 3", []string{"migrate", "down", "3"}, Invocation{Command: CommandMigrate, RollbackSteps: 3}, ""},
		{"down 0はエラー", []string{"migrate", "down", "0"}, Invocation{}, "invalid rollback steps"},
		{"down abcはエラー", []string{"migrate", "down", "abc"}, Invocation{}, "invalid rollback steps"},
		{"不明な方向", []string{"migrate", "sideways"}, Invocation{}, "unknown migrate direction"},
		{"不明なコマンド", []string{"fetch"}, Invocation{}, "unknown command"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseArgs(tt.args)
			if tt.wantErrIn != "" {
				if err == nil {
					t.Fatalf("ParseArgs(%v) should fail", tt.args)
				}
				if !strings.Contains(err.Error(), tt.wantErrIn) {
					t.Errorf("error = %q, want to contain %q", err, tt.wantErrIn)
				}
				if !strings.Contains(err.Error(), "usage: skillswap") {
					t.Errorf("error should include usage: %q", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tt.want {
				t.Errorf("ParseArgs(%v) = %+v, want %+v", tt.args, got, tt.want)
			}
		})
	}
}

func TestUsage_ListsEveryCommand(t *testing.T) {
	for _, cmd := range []Command{CommandServe, CommandWorker, CommandMigrate, CommandHealthcheck} {
		if !strings.Contains(Usage, string(cmd)) {
			t.Errorf("Usage does not mention %q", cmd)
		}
	}
}
