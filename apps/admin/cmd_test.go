package main

import (
	"context"
	"io"
	"log"
	"testing"

	"github.com/go-playground/validator/v10"
	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/term"

	"github.com/trezcool/alama/core"
	"github.com/trezcool/alama/core/user"
	"github.com/trezcool/alama/storage/database"
	dummydb "github.com/trezcool/alama/storage/database/dummy"
	testutil "github.com/trezcool/alama/tests"
)

const pwd = "Pr3dict!ons"

var usrRepo user.Repository

func setup(t *testing.T) *commandLine {
	t.Helper()
	logger = log.New(io.Discard, "", 0)

	// set up DB & repos
	db, err := dummydb.Open()
	require.NoError(t, err)
	usrRepo = dummydb.NewUserRepository(db)

	validate, _ := testutil.NewValidator()

	t.Cleanup(func() {
		readPasswordFunc = term.ReadPassword
		runMigrationsFunc = database.RunMigrations
	})

	// start CLI
	return &commandLine{
		usrSvc:   user.NewService(usrRepo),
		validate: validate,
	}
}

type cliTest struct {
	name       string
	args       []string // without program name
	pwd        string   // typed at the password prompt
	wantErr    error
	wantErrStr string
	wantVErr   bool // validator.ValidationErrors expected
}

func (tt cliTest) check(t *testing.T, err error) {
	t.Helper()
	switch {
	case tt.wantVErr:
		var vErrs validator.ValidationErrors
		assert.True(t, errors.As(err, &vErrs), "got %v", err)
	case tt.wantErr != nil:
		assert.Equal(t, tt.wantErr, errors.Cause(err))
	case tt.wantErrStr != "":
		assert.EqualError(t, err, tt.wantErrStr)
	default:
		assert.NoError(t, err)
	}
}

func mockPasswordPrompt(pwd string) {
	readPasswordFunc = func(int) ([]byte, error) { return []byte(pwd), nil }
}

func Test_commandLine_run(t *testing.T) {
	cli := setup(t)

	tests := []cliTest{
		{name: "no command", wantErr: errHelp},
		{name: "unknown command", args: []string{"lol"}, wantErr: errHelp},
		{name: "unknown flag", args: []string{"adduser", "-lol"}, wantErrStr: "flag provided but not defined: -lol"},
	}
	for _, tt := range tests {
		args := append([]string{"admin"}, tt.args...)
		t.Run(tt.name, func(t *testing.T) {
			tt.check(t, cli.run(context.Background(), args))
		})
	}
}

func Test_commandLine_migrate(t *testing.T) {
	cli := setup(t)

	type call struct {
		command string
		args    []string
	}
	var got []call
	runMigrationsFunc = func(_ context.Context, _ *sqlx.DB, command string, args ...string) error {
		switch command {
		case "up", "up-by-one", "down", "redo", "reset", "status", "version": // pass
		case "up-to", "down-to":
			if len(args) == 0 {
				return errors.Errorf("%s must be of form: goose [OPTIONS] DRIVER DBSTRING %s VERSION", command, command)
			}
		default:
			return errors.Errorf("%q: no such command", command)
		}
		got = append(got, call{command: command, args: args})
		return nil
	}

	tests := []cliTest{
		{name: "no subcommand", args: []string{"migrate"}, wantErr: errHelp},
		{name: "unknown subcommand", args: []string{"migrate", "lol"}, wantErrStr: `"lol": no such command`},
		{name: "up-to: no args", args: []string{"migrate", "up-to"}, wantErrStr: "up-to must be of form: goose [OPTIONS] DRIVER DBSTRING up-to VERSION"},
		{name: "up", args: []string{"migrate", "up"}},
		{name: "up-to", args: []string{"migrate", "up-to", "2"}},
		{name: "down-to", args: []string{"migrate", "down-to", "1"}},
		{name: "status", args: []string{"migrate", "status"}},
	}
	for _, tt := range tests {
		args := append([]string{"admin"}, tt.args...)
		t.Run(tt.name, func(t *testing.T) {
			tt.check(t, cli.run(context.Background(), args))
		})
	}

	assert.Equal(t, []call{
		{command: "up", args: []string{}},
		{command: "up-to", args: []string{"2"}},
		{command: "down-to", args: []string{"1"}},
		{command: "status", args: []string{}},
	}, got)

	t.Run("no database", func(t *testing.T) {
		runMigrationsFunc = database.RunMigrations
		err := cli.run(context.Background(), []string{"admin", "migrate", "up"})
		assert.Equal(t, database.ErrNoDatabase, errors.Cause(err))
	})
}

func Test_commandLine_addUser(t *testing.T) {
	cli := setup(t)
	_ = testutil.CreateUser(t, usrRepo, "amy", "amy@alama.io", pwd, user.RoleStudent, "7B")

	tests := []cliTest{
		{name: "no args", args: []string{"adduser"}, wantErr: errHelp},
		{name: "username but no password", args: []string{"adduser", "-username", "tom"}, wantErr: errHelp},
		{name: "invalid role", args: []string{"adduser", "-username", "tom", "-role", "root"}, pwd: pwd, wantVErr: true},
		{name: "weak password", args: []string{"adduser", "-username", "tom"}, pwd: "12345678", wantVErr: true},
		{name: "duplicate username", args: []string{"adduser", "-username", "AMY"}, pwd: pwd, wantErr: user.ErrUsernameExists},
		{name: "admin", args: []string{"adduser", "-username", "root", "-role", "admin"}, pwd: pwd},
		{name: "teacher", args: []string{"adduser", "-username", "Tom", "-email", "tom@alama.io", "-role", "teacher", "-class", "7B"}, pwd: pwd},
	}
	for _, tt := range tests {
		args := append([]string{"admin"}, tt.args...)
		mockPasswordPrompt(tt.pwd)

		t.Run(tt.name, func(t *testing.T) {
			err := cli.run(context.Background(), args)
			if tt.wantErr == user.ErrUsernameExists {
				var vErr *core.ValidationError
				require.True(t, errors.As(err, &vErr))
				assert.Equal(t, tt.wantErr, vErr.Err)
				return
			}
			tt.check(t, err)
		})
	}

	ctx := context.Background()
	admin, err := usrRepo.GetUser(ctx, user.GetFilter{UsernameOrEmail: "root"})
	require.NoError(t, err)
	assert.Equal(t, user.RoleAdmin, admin.Role)
	assert.NoError(t, admin.CheckPassword(pwd))

	teacher, err := usrRepo.GetUser(ctx, user.GetFilter{UsernameOrEmail: "tom@alama.io"})
	require.NoError(t, err)
	assert.Equal(t, "tom", teacher.Username)
	assert.Equal(t, user.RoleTeacher, teacher.Role)
	assert.Equal(t, "7B", teacher.ClassName)
}

func Test_commandLine_resetPassword(t *testing.T) {
	cli := setup(t)
	usr := testutil.CreateUser(t, usrRepo, "jane", "jane@alama.io", pwd, user.RoleStudent, "")

	tests := []cliTest{
		{name: "no args", args: []string{"resetpassword"}, wantErr: errHelp},
		{name: "username but no password", args: []string{"resetpassword", "-username", "jane"}, wantErr: errHelp},
		{name: "user not found", args: []string{"resetpassword", "-username", "lol"}, pwd: "N3w-Secret!", wantErr: user.ErrNotFound},
		{name: "weak password", args: []string{"resetpassword", "-username", "jane"}, pwd: "short", wantErrStr: "password must contain at least 8 characters"},
		{name: "similar password", args: []string{"resetpassword", "-username", "jane"}, pwd: "jane@alama.io", wantErrStr: "password cannot be similar to user attributes"},
		{name: "reset with username", args: []string{"resetpassword", "-username", "JANE"}, pwd: "N3w-Secret!"},
		{name: "reset with email", args: []string{"resetpassword", "-username", usr.Email}, pwd: "An0ther-0ne"},
	}
	for _, tt := range tests {
		args := append([]string{"admin"}, tt.args...)
		mockPasswordPrompt(tt.pwd)

		t.Run(tt.name, func(t *testing.T) {
			err := cli.run(context.Background(), args)
			tt.check(t, err)
			if err != nil {
				return
			}
			refreshed, err := usrRepo.GetUser(context.Background(), user.GetFilter{ID: usr.ID})
			require.NoError(t, err)
			assert.NoError(t, refreshed.CheckPassword(tt.pwd))
		})
	}
}
