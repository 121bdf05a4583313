package staging

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNext(t *testing.T) {
	tests := []struct {
		name    string
		from    Status
		event   Event
		want    Status
		wantErr bool
	}{
		{name: "idle generate", from: StatusIdle, event: EventGenerate, want: StatusGenerating},
		{name: "generating done", from: StatusGenerating, event: EventGenerateDone, want: StatusIdle},
		{name: "idle publish", from: StatusIdle, event: EventPublish, want: StatusCommitting},
		{name: "committing success", from: StatusCommitting, event: EventPublished, want: StatusCommitted},
		{name: "committing failure", from: StatusCommitting, event: EventFailed, want: StatusError},
		{name: "error rearm", from: StatusError, event: EventRearm, want: StatusIdle},
		{name: "committed is terminal", from: StatusCommitted, event: EventPublish, want: StatusCommitted, wantErr: true},
		{name: "no publish while generating", from: StatusGenerating, event: EventPublish, want: StatusGenerating, wantErr: true},
		{name: "no generate while committing", from: StatusCommitting, event: EventGenerate, want: StatusCommitting, wantErr: true},
		{name: "error cannot publish directly", from: StatusError, event: EventPublish, want: StatusError, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Next(tt.from, tt.event)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrIllegalTransition)
			} else {
				require.NoError(t, err)
			}
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestValidate(t *testing.T) {
	err := Validate(File{Name: "a.txt", CommitMessage: "msg"})
	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "path", verr.Field)
	assert.Equal(t, "a.txt: path is required", err.Error())

	err = Validate(File{Name: "a.txt", Path: "a.txt", CommitMessage: "  "})
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "commit message", verr.Field)

	assert.NoError(t, Validate(File{Name: "a.txt", Path: "a.txt", CommitMessage: "patch a"}))
}

func TestCleanPath(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"a.txt", "a.txt"},
		{" /a.txt ", "a.txt"},
		{"docs//guide/./a.md", "docs/guide/a.md"},
		{"src/", "src"},
		{"/", ""},
		{"", ""},
		{"../x", "../x"},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, CleanPath(tt.in))
		})
	}
}

func TestValidatePath(t *testing.T) {
	assert.NoError(t, ValidatePath("a", "docs/a.md"))

	for _, p := range []string{"", "/a.txt", "a//b", ".", "..", "../a", "src/../a"} {
		err := ValidatePath("a", p)
		var verr *ValidationError
		require.ErrorAs(t, err, &verr, p)
		assert.Equal(t, "path", verr.Field)
	}

	err := Validate(File{Name: "a.txt", Path: "/a.txt", CommitMessage: "m"})
	assert.ErrorContains(t, err, `use "a.txt"`)
}
