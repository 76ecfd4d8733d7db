package redact

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestString(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"python train.py --lr=0.1", "python train.py --lr=0.1"},
		{"python train.py --api_key=abc123", "python train.py --api_key=<redacted>"},
		{"python train.py --api-key abc123 --lr=0.1", "python train.py --api-key <redacted> --lr=0.1"},
		{"WANDB_API_KEY=abc python x.py", "WANDB_API_KEY=<redacted> python x.py"},
		{"run --token=\"a b c\" --epochs=3", "run --token=<redacted> --epochs=3"},
		{"password: hunter2", "password: <redacted>"},
		{"--secret -v", "--secret -v"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, String(tt.in), tt.in)
	}
}

func TestArgs(t *testing.T) {
	in := []string{"python", "train.py", "--api_key=abc123", "--token", "xyz789", "--secret", "-v", "--lr=0.1"}
	assert.Equal(t, []string{
		"python", "train.py", "--api_key=<redacted>", "--token", "<redacted>", "--secret", "-v", "--lr=0.1",
	}, Args(in))
	assert.Equal(t, "xyz789", in[4])
	assert.Nil(t, Args(nil))
}

func TestMapDoesNotMutateInput(t *testing.T) {
	in := map[string]any{
		"token":  "abc",
		"nested": map[string]any{"db_password": "pw", "host": "h"},
		"args":   []string{"--api_key=k"},
		"n":      3,
	}
	out := Map(in)

	assert.Equal(t, map[string]any{
		"token":  "<redacted>",
		"nested": map[string]any{"db_password": "<redacted>", "host": "h"},
		"args":   []string{"--api_key=<redacted>"},
		"n":      3,
	}, out)
	assert.Equal(t, "abc", in["token"])
	assert.Equal(t, "pw", in["nested"].(map[string]any)["db_password"])
}

func TestMapNil(t *testing.T) {
	assert.Equal(t, map[string]any{}, Map(nil))
}
