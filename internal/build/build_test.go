package build

import (
	"context"
	"errors"
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/manifest-network/factoryctl/internal/client"
)

type recordingExecutor struct {
	commands []client.Command
	err      error
}

func (r *recordingExecutor) Run(_ context.Context, cmd client.Command) (*client.Output, error) {
	r.commands = append(r.commands, cmd)
	return &client.Output{Stdout: "Compiling sputnikdao2\nFinished release\n"}, r.err
}

func TestRun(t *testing.T) {
	fs := afero.NewMemMapFs()
	require.NoError(t, fs.MkdirAll("/src/sputnik", 0o755))

	cases := []struct {
		name    string
		command string
		dir     string
		execErr error
		wantCmd client.Command
		wantErr string
	}{
		{
			name:    "script",
			command: "./build.sh",
			dir:     "/src/sputnik",
			wantCmd: client.Command{Name: "./build.sh", Args: []string{}, Dir: "/src/sputnik"},
		},
		{
			name:    "quoted arguments",
			command: `cargo build --target wasm32-unknown-unknown --features "a b"`,
			wantCmd: client.Command{Name: "cargo", Args: []string{"build", "--target", "wasm32-unknown-unknown", "--features", "a b"}},
		},
		{
			name:    "empty",
			command: "  ",
			wantErr: "build command is empty",
		},
		{
			name:    "missing dir",
			command: "./build.sh",
			dir:     "/nope",
			wantErr: "does not exist",
		},
		{
			name:    "failing build",
			command: "./build.sh",
			execErr: errors.New("exit status 101"),
			wantErr: "build failed",
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			e := &recordingExecutor{err: tc.execErr}
			err := New(tc.command, tc.dir, fs, e).Run(context.Background())
			if tc.wantErr != "" {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tc.wantErr)
				return
			}
			require.NoError(t, err)
			require.Len(t, e.commands, 1)
			assert.Equal(t, tc.wantCmd.Name, e.commands[0].Name)
			assert.ElementsMatch(t, tc.wantCmd.Args, e.commands[0].Args)
			assert.Equal(t, tc.wantCmd.Dir, e.commands[0].Dir)
		})
	}
}

func TestDisassemble(t *testing.T) {
	fs := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fs, "/res/sputnikdao2.wasm", []byte("\x00asm"), 0o644))
	e := &recordingExecutor{}
	b := New("./build.sh", "", fs, e)

	require.NoError(t, b.Disassemble(context.Background(), "/res/sputnikdao2.wasm", ""))
	require.Len(t, e.commands, 1)
	assert.Equal(t, "wasm2wat", e.commands[0].Name)
	assert.Equal(t, []string{"/res/sputnikdao2.wasm", "-o", "/res/sputnikdao2.wat"}, e.commands[0].Args)

	require.NoError(t, b.Disassemble(context.Background(), "/res/sputnikdao2.wasm", "/out/dao.wat"))
	ok, err := afero.DirExists(fs, "/out")
	require.NoError(t, err)
	assert.True(t, ok)

	assert.ErrorContains(t, b.Disassemble(context.Background(), "/res/missing.wasm", ""), "does not exist")
}
