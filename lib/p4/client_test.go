// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package p4

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

// fakeResponse is one arm of the fake p4 script: when the full
// argument string contains Match, the script writes Stdout and Stderr
// and exits with Exit. A non-zero Sleep delays the answer by that many
// seconds.
type fakeResponse struct {
	Match  string
	Stdout string
	Stderr string
	Exit   int
	Sleep  int
}

const infoOutput = `{"userName":"alice","clientName":"*unknown*","clientHost":"build-7","serverAddress":"perforce:1666","serverVersion":"P4D/LINUX26X86_64/2024.1/2596294"}` + "\n"

// fakeP4 writes an executable shell script that impersonates p4. The
// script records each invocation's arguments in <dir>/calls and its
// stdin in <dir>/stdin, then answers with the first matching response.
// Unmatched invocations fail with a generic error. It returns the
// script path and the directory holding the recorded calls.
func fakeP4(t *testing.T, responses ...fakeResponse) (string, string) {
	t.Helper()

	dir := t.TempDir()
	var script strings.Builder
	script.WriteString("#!/bin/sh\n")
	fmt.Fprintf(&script, "printf '%%s\\n' \"$*\" >> '%s'\n", filepath.Join(dir, "calls"))
	fmt.Fprintf(&script, "cat > '%s'\n", filepath.Join(dir, "stdin"))
	script.WriteString("case \"$*\" in\n")
	for index, response := range responses {
		stdoutPath := filepath.Join(dir, fmt.Sprintf("stdout-%d", index))
		stderrPath := filepath.Join(dir, fmt.Sprintf("stderr-%d", index))
		if err := os.WriteFile(stdoutPath, []byte(response.Stdout), 0o644); err != nil {
			t.Fatalf("write stdout fixture: %v", err)
		}
		if err := os.WriteFile(stderrPath, []byte(response.Stderr), 0o644); err != nil {
			t.Fatalf("write stderr fixture: %v", err)
		}
		fmt.Fprintf(&script, "*'%s'*)\n", response.Match)
		if response.Sleep > 0 {
			fmt.Fprintf(&script, "  sleep %d\n", response.Sleep)
		}
		fmt.Fprintf(&script, "  cat '%s'\n  cat '%s' >&2\n  exit %d\n  ;;\n",
			stdoutPath, stderrPath, response.Exit)
	}
	script.WriteString("esac\necho \"fake p4: unexpected arguments: $*\" >&2\nexit 1\n")

	scriptPath := filepath.Join(dir, "p4")
	if err := os.WriteFile(scriptPath, []byte(script.String()), 0o755); err != nil {
		t.Fatalf("write fake p4: %v", err)
	}
	return scriptPath, dir
}

// connectFake connects a Client to a fake p4 that answers "info" plus
// the given responses.
func connectFake(t *testing.T, level ExceptionLevel, responses ...fakeResponse) (*Client, string) {
	t.Helper()

	all := append([]fakeResponse{{Match: "-Mj info", Stdout: infoOutput}}, responses...)
	binary, dir := fakeP4(t, all...)
	client, err := Connect(context.Background(), Options{
		Binary:         binary,
		Port:           "perforce:1666",
		User:           "alice",
		ExceptionLevel: level,
	})
	if err != nil {
		t.Fatalf("Connect: %v", err)
	}
	return client, dir
}

func readCalls(t *testing.T, dir string) []string {
	t.Helper()
	data, err := os.ReadFile(filepath.Join(dir, "calls"))
	if err != nil {
		t.Fatalf("read calls: %v", err)
	}
	return strings.Split(strings.TrimSuffix(string(data), "\n"), "\n")
}

func TestConnect_RecordsServerInfo(t *testing.T) {
	t.Parallel()

	client, dir := connectFake(t, RaiseErrors)

	info := client.Info()
	if info.ServerAddress != "perforce:1666" {
		t.Errorf("ServerAddress = %q, want %q", info.ServerAddress, "perforce:1666")
	}
	if info.UserName != "alice" {
		t.Errorf("UserName = %q, want %q", info.UserName, "alice")
	}
	if info.ClientHost != "build-7" {
		t.Errorf("ClientHost = %q, want %q", info.ClientHost, "build-7")
	}
	if client.ExceptionLevel() != RaiseErrors {
		t.Errorf("ExceptionLevel() = %v, want %v", client.ExceptionLevel(), RaiseErrors)
	}

	calls := readCalls(t, dir)
	want := "-p perforce:1666 -u alice -ztag -Mj info"
	if len(calls) != 1 || calls[0] != want {
		t.Errorf("calls = %q, want [%q]", calls, want)
	}
}

func TestConnect_RejectsUnsetExceptionLevel(t *testing.T) {
	t.Parallel()

	binary, dir := fakeP4(t, fakeResponse{Match: "-Mj info", Stdout: infoOutput})
	_, err := Connect(context.Background(), Options{Binary: binary})
	if err == nil {
		t.Fatal("Connect with zero ExceptionLevel succeeded, want error")
	}
	if _, statErr := os.Stat(filepath.Join(dir, "calls")); statErr == nil {
		t.Error("p4 was invoked despite invalid options")
	}
}

func TestConnect_ServerUnreachable(t *testing.T) {
	t.Parallel()

	binary, _ := fakeP4(t, fakeResponse{
		Match:  "-Mj info",
		Stderr: "Perforce client error:\n\tConnect to server failed; check $P4PORT.\n",
		Exit:   1,
	})
	_, err := Connect(context.Background(), Options{Binary: binary, ExceptionLevel: RaiseErrors})
	if err == nil {
		t.Fatal("Connect succeeded against an unreachable server")
	}

	var commandError *CommandError
	if !errors.As(err, &commandError) {
		t.Fatalf("error %v is not a *CommandError", err)
	}
	if commandError.Severity != SeverityFailed {
		t.Errorf("Severity = %v, want %v", commandError.Severity, SeverityFailed)
	}
	if !strings.Contains(err.Error(), "Connect to server failed") {
		t.Errorf("error = %v, want the server message", err)
	}
}

func TestConnect_MissingBinary(t *testing.T) {
	t.Parallel()

	_, err := Connect(context.Background(), Options{
		Binary:         filepath.Join(t.TempDir(), "no-such-p4"),
		ExceptionLevel: RaiseErrors,
	})
	var commandError *CommandError
	if !errors.As(err, &commandError) {
		t.Fatalf("Connect error = %v, want *CommandError", err)
	}
	if commandError.Severity != SeverityFatal {
		t.Errorf("Severity = %v, want %v", commandError.Severity, SeverityFatal)
	}
}

func TestClient_Command(t *testing.T) {
	t.Parallel()

	client := &Client{options: Options{
		Binary:  "p4",
		Port:    "ssl:perforce:1666",
		User:    "alice",
		Host:    "build-7",
		Client:  "alice-ws",
		Charset: "utf8",
	}}

	command := client.Command(context.Background(), "dirs", "//depot/*")
	want := []string{"p4",
		"-p", "ssl:perforce:1666", "-u", "alice", "-H", "build-7",
		"-c", "alice-ws", "-C", "utf8", "dirs", "//depot/*"}
	if len(command.Args) != len(want) {
		t.Fatalf("Args = %v, want %v", command.Args, want)
	}
	for index := range want {
		if command.Args[index] != want[index] {
			t.Errorf("Args[%d] = %q, want %q", index, command.Args[index], want[index])
		}
	}
}

func TestClient_Dirs(t *testing.T) {
	t.Parallel()

	client, _ := connectFake(t, RaiseErrors, fakeResponse{
		Match: "dirs //depot/*",
		Stdout: `{"dir":"//depot/main"}` + "\n" +
			`{"dir":"//depot/release"}` + "\n",
	})

	directories, err := client.Dirs(context.Background(), "//depot/*")
	if err != nil {
		t.Fatalf("Dirs: %v", err)
	}
	want := []string{"//depot/main", "//depot/release"}
	if strings.Join(directories, ",") != strings.Join(want, ",") {
		t.Errorf("Dirs = %v, want %v", directories, want)
	}
}

func TestClient_CancelledCommand(t *testing.T) {
	t.Parallel()

	client, _ := connectFake(t, RaiseErrors, fakeResponse{
		Match:  "dirs //depot/*",
		Stdout: `{"dir":"//depot/main"}` + "\n",
		Sleep:  30,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()

	start := time.Now()
	_, err := client.Dirs(ctx, "//depot/*")
	elapsed := time.Since(start)

	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("Dirs error = %v, want context.DeadlineExceeded", err)
	}
	var commandError *CommandError
	if !errors.As(err, &commandError) {
		t.Fatalf("Dirs error = %T, want *CommandError", err)
	}
	// The orphaned sleep still holds the pipes; WaitDelay must cut it off.
	if elapsed > 5*time.Second {
		t.Errorf("Dirs returned after %v, want prompt return once cancelled", elapsed)
	}
}

func TestClient_CancelledBeforeStart(t *testing.T) {
	t.Parallel()

	client, _ := connectFake(t, RaiseErrors)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := client.Print(ctx, "//depot/main/a.txt#1")
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("Print error = %v, want context.Canceled", err)
	}
}

func TestClient_Files(t *testing.T) {
	t.Parallel()

	client, _ := connectFake(t, RaiseErrors, fakeResponse{
		Match: "files //depot/main/*",
		Stdout: `{"depotFile":"//depot/main/README","rev":"3","change":"120","action":"edit","type":"text","time":"1700000000"}` + "\n" +
			`{"depotFile":"//depot/main/old.c","rev":"2","change":"98","action":"delete","type":"text","time":"1690000000"}` + "\n",
	})

	records, err := client.Files(context.Background(), "//depot/main/*")
	if err != nil {
		t.Fatalf("Files: %v", err)
	}
	if len(records) != 2 {
		t.Fatalf("Files returned %d records, want 2", len(records))
	}

	readme := records[0]
	if readme.DepotFile != "//depot/main/README" || readme.Revision != 3 || readme.Change != 120 {
		t.Errorf("records[0] = %+v", readme)
	}
	if readme.Time != 1700000000 {
		t.Errorf("records[0].Time = %d, want 1700000000", readme.Time)
	}
	if readme.Action.IsDelete() {
		t.Error("records[0] classified as deleted")
	}
	if !records[1].Action.IsDelete() {
		t.Errorf("records[1].Action = %q, want a delete", records[1].Action)
	}
}

func TestClient_Files_MalformedNumber(t *testing.T) {
	t.Parallel()

	client, _ := connectFake(t, RaiseErrors, fakeResponse{
		Match:  "files //depot/x",
		Stdout: `{"depotFile":"//depot/x","rev":"three","action":"add","type":"text","time":"1"}` + "\n",
	})

	_, err := client.Files(context.Background(), "//depot/x")
	if err == nil || !strings.Contains(err.Error(), "rev") {
		t.Errorf("Files error = %v, want a rev parse error", err)
	}
}

func TestClient_ExceptionLevels(t *testing.T) {
	t.Parallel()

	emptyLocation := fakeResponse{
		Match:  "files //depot/empty/*",
		Stderr: "//depot/empty/* - no such file(s).\n",
		Exit:   1,
	}
	taggedWarning := fakeResponse{
		Match:  "files //depot/tagged/*",
		Stdout: `{"code":"error","severity":2,"generic":17,"data":"//depot/tagged/* - no such file(s).\n"}` + "\n",
	}
	protections := fakeResponse{
		Match:  "files //secret/*",
		Stdout: `{"code":"error","severity":3,"generic":22,"data":"Protections table is empty.\n"}` + "\n",
		Exit:   1,
	}

	tests := []struct {
		name    string
		level   ExceptionLevel
		pattern string
		wantErr bool
	}{
		{"none ignores failures", RaiseNone, "//secret/*", false},
		{"errors ignores stderr warning", RaiseErrors, "//depot/empty/*", false},
		{"errors ignores tagged warning", RaiseErrors, "//depot/tagged/*", false},
		{"errors raises failure", RaiseErrors, "//secret/*", true},
		{"warnings raises stderr warning", RaiseWarnings, "//depot/empty/*", true},
		{"warnings raises tagged warning", RaiseWarnings, "//depot/tagged/*", true},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			t.Parallel()

			client, _ := connectFake(t, test.level, emptyLocation, taggedWarning, protections)
			records, err := client.Files(context.Background(), test.pattern)
			if test.wantErr {
				var commandError *CommandError
				if !errors.As(err, &commandError) {
					t.Fatalf("Files(%s) error = %v, want *CommandError", test.pattern, err)
				}
				if len(commandError.Messages) == 0 {
					t.Error("CommandError carries no messages")
				}
				return
			}
			if err != nil {
				t.Fatalf("Files(%s): %v", test.pattern, err)
			}
			if len(records) != 0 {
				t.Errorf("Files(%s) = %v, want no records", test.pattern, records)
			}
		})
	}
}

func TestClient_Filelog(t *testing.T) {
	t.Parallel()

	client, dir := connectFake(t, RaiseErrors, fakeResponse{
		Match: "filelog -m 1 //depot/main/README",
		Stdout: `{"depotFile":"//depot/main/README","rev0":"3","change0":"120","action0":"edit","type0":"text","time0":"1700000000","fileSize0":"42","digest0":"0CC175B9C0F1B6A831C399E269772661",` +
			`"rev1":"2","change1":"80","action1":"add","type1":"text","time1":"1600000000","fileSize1":"10"}` + "\n",
	})

	revisions, err := client.Filelog(context.Background(), "//depot/main/README", 1)
	if err != nil {
		t.Fatalf("Filelog: %v", err)
	}
	if len(revisions) != 1 {
		t.Fatalf("Filelog returned %d revisions, want 1", len(revisions))
	}
	head := revisions[0]
	if head.Revision != 3 || head.Change != 120 || head.Size != 42 {
		t.Errorf("head = %+v", head)
	}
	if !head.Time.Equal(time.Unix(1700000000, 0)) {
		t.Errorf("head.Time = %v, want %v", head.Time, time.Unix(1700000000, 0).UTC())
	}
	if head.Digest != "0CC175B9C0F1B6A831C399E269772661" {
		t.Errorf("head.Digest = %q", head.Digest)
	}

	calls := readCalls(t, dir)
	if last := calls[len(calls)-1]; !strings.HasSuffix(last, "-ztag -Mj filelog -m 1 //depot/main/README") {
		t.Errorf("last call = %q", last)
	}
}

func TestClient_Filelog_FullHistory(t *testing.T) {
	t.Parallel()

	client, _ := connectFake(t, RaiseErrors, fakeResponse{
		Match: "-Mj filelog //depot/a",
		Stdout: `{"depotFile":"//depot/a","rev0":"2","change0":"5","action0":"delete","type0":"text","time0":"20"}` + "\n" +
			`{"depotFile":"//depot/a","rev0":"1"}` + "\n",
	})

	revisions, err := client.Filelog(context.Background(), "//depot/a", 0)
	if err != nil {
		t.Fatalf("Filelog: %v", err)
	}
	if len(revisions) != 1 || revisions[0].Revision != 2 {
		t.Fatalf("Filelog = %+v, want only the first object's revision 2", revisions)
	}
	if !revisions[0].Action.IsDelete() || revisions[0].Size != 0 {
		t.Errorf("deleted revision = %+v", revisions[0])
	}
}

func TestClient_Filelog_NoSuchFile(t *testing.T) {
	t.Parallel()

	client, _ := connectFake(t, RaiseErrors, fakeResponse{
		Match:  "filelog -m 1 //depot/missing",
		Stderr: "//depot/missing - no such file(s).\n",
		Exit:   1,
	})

	revisions, err := client.Filelog(context.Background(), "//depot/missing", 1)
	if err != nil {
		t.Fatalf("Filelog: %v", err)
	}
	if len(revisions) != 0 {
		t.Errorf("Filelog = %v, want none", revisions)
	}
}

func TestClient_Print(t *testing.T) {
	t.Parallel()

	client, _ := connectFake(t, RaiseErrors,
		fakeResponse{
			Match:  "fstat -T headType //depot/main/README",
			Stdout: `{"headType":"ktext"}` + "\n",
		},
		fakeResponse{
			Match:  "print -q //depot/main/README",
			Stdout: "hello depot\n",
		},
		fakeResponse{
			Match:  "fstat -T headType //depot/none",
			Stderr: "//depot/none - no such file(s).\n",
			Exit:   1,
		},
	)

	content, err := client.Print(context.Background(), "//depot/main/README")
	if err != nil {
		t.Fatalf("Print: %v", err)
	}
	if content.Type != "ktext" || !content.Type.IsText() {
		t.Errorf("content.Type = %q, want text-classified ktext", content.Type)
	}
	if string(content.Data) != "hello depot\n" {
		t.Errorf("content.Data = %q", content.Data)
	}

	content, err = client.Print(context.Background(), "//depot/none")
	if err != nil {
		t.Fatalf("Print(missing): %v", err)
	}
	if content.Type != "" || content.Data != nil {
		t.Errorf("Print(missing) = %+v, want empty content", content)
	}
}

func TestClient_Login(t *testing.T) {
	t.Parallel()

	client, dir := connectFake(t, RaiseErrors, fakeResponse{
		Match:  " login",
		Stdout: "User alice logged in.\n",
	})

	if err := client.Login(context.Background(), "hunter2"); err != nil {
		t.Fatalf("Login: %v", err)
	}
	stdin, err := os.ReadFile(filepath.Join(dir, "stdin"))
	if err != nil {
		t.Fatalf("read stdin: %v", err)
	}
	if string(stdin) != "hunter2\n" {
		t.Errorf("login stdin = %q, want %q", stdin, "hunter2\n")
	}
}

func TestClient_Login_BadPassword(t *testing.T) {
	t.Parallel()

	client, _ := connectFake(t, RaiseErrors, fakeResponse{
		Match:  " login",
		Stderr: "Password invalid.\n",
		Exit:   1,
	})

	err := client.Login(context.Background(), "wrong")
	if err == nil || !strings.Contains(err.Error(), "Password invalid") {
		t.Errorf("Login error = %v, want the server message", err)
	}
}
