//  Copyright (c) 2023 Uber Technologies, Inc.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
	"gopkg.in/yaml.v3"
)

const _interprocedural = "../../testdata/programs/interprocedural.yaml"

const _client = `
classes:
  - name: com/acme/Callee
    methods:
      - name: length
        desc: (Ljava/lang/String;)I
        access: [public, static, native]
  - name: com/acme/Client
    methods:
      - name: measure
        desc: (Ljava/lang/String;)I
        access: [public, static]
        code: |
          aload 0
          invokestatic com/acme/Callee.length(Ljava/lang/String;)I
          ireturn
`

const _broken = `
classes:
  - name: test/Broken
    methods:
      - name: underflow
        desc: ()Ljava/lang/Object;
        access: [static]
        code: |
          areturn
`

// execute runs the root command with args and returns its stdout and stderr.
func execute(t *testing.T, args ...string) (string, string, error) {
	t.Helper()
	var stdout, stderr bytes.Buffer
	cmd := newRootCmd(&stdout, &stderr)
	// A nil slice makes cobra read os.Args.
	if args == nil {
		args = []string{}
	}
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(context.Background())
	return stdout.String(), stderr.String(), err
}

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func decodeEntries(t *testing.T, out string) []entry {
	t.Helper()
	var list []entry
	require.NoError(t, yaml.Unmarshal([]byte(out), &list))
	return list
}

func TestYAMLOutput(t *testing.T) {
	t.Parallel()

	stdout, _, err := execute(t, _interprocedural)
	require.NoError(t, err)

	expected := []entry{
		{Class: "com/acme/Callee", Member: "find()Ljava/lang/Object;", Position: "return", Nullability: "Nullable"},
		{Class: "com/acme/Callee", Member: "length(Ljava/lang/String;)I", Position: "param 0", Nullability: "NotNull"},
		{Class: "com/acme/Caller", Member: "forward(Ljava/lang/String;)I", Position: "param 0", Nullability: "NotNull"},
		{Class: "com/acme/Caller", Member: "lookup()Ljava/lang/Object;", Position: "return", Nullability: "Nullable"},
	}
	if diff := cmp.Diff(expected, decodeEntries(t, stdout), cmpopts.IgnoreUnexported(entry{})); diff != "" {
		t.Errorf("annotations mismatch (-want +got):\n%s", diff)
	}
}

func TestTextOutput(t *testing.T) {
	t.Parallel()

	stdout, _, err := execute(t, "--format", "text", "--include-classes", "com/acme/Callee", _interprocedural)
	require.NoError(t, err)
	require.Equal(t,
		"`com/acme/Callee.find()Ljava/lang/Object;` return: @Nullable\n"+
			"`com/acme/Callee.length(Ljava/lang/String;)I` param 0: @NotNull\n",
		stdout)

	stdout, _, err = execute(t, "--format", "text", "--pretty", _interprocedural)
	require.NoError(t, err)
	require.Contains(t, stdout, "\u001B[1m@NotNull\u001B[0m")
	require.Contains(t, stdout, "\u001B[95m`com/acme/Caller.lookup()Ljava/lang/Object;`\u001B[0m")
}

func TestFlagsOverrideConfigFile(t *testing.T) {
	t.Parallel()

	conf := writeFile(t, "jqual.yaml", "rounds: 1\nincludeClasses: [com/acme/Caller]\n")

	// A single round cannot see the callees' annotations.
	stdout, _, err := execute(t, "--config", conf, _interprocedural)
	require.NoError(t, err)
	require.Empty(t, decodeEntries(t, stdout))

	stdout, _, err = execute(t, "--config", conf, "--rounds", "3", _interprocedural)
	require.NoError(t, err)
	list := decodeEntries(t, stdout)
	require.Len(t, list, 2)
	for _, e := range list {
		require.Equal(t, "com/acme/Caller", e.Class)
	}
}

func TestSnapshotAndPrior(t *testing.T) {
	t.Parallel()

	snapshot := filepath.Join(t.TempDir(), "callee.snap")
	_, _, err := execute(t, "--snapshot", snapshot, "--include-classes", "com/acme/Callee", _interprocedural)
	require.NoError(t, err)
	info, err := os.Stat(snapshot)
	require.NoError(t, err)
	require.NotZero(t, info.Size())

	client := writeFile(t, "client.yaml", _client)
	stdout, _, err := execute(t, "--include-classes", "com/acme/Client", client)
	require.NoError(t, err)
	require.Empty(t, decodeEntries(t, stdout))

	stdout, _, err = execute(t, "--prior", snapshot, "--include-classes", "com/acme/Client", client)
	require.NoError(t, err)
	list := decodeEntries(t, stdout)
	require.Len(t, list, 1)
	require.Equal(t, "measure(Ljava/lang/String;)I", list[0].Member)
	require.Equal(t, "NotNull", list[0].Nullability)
}

func TestMetricsFile(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "jqual.prom")
	_, _, err := execute(t, "--metrics", path, _interprocedural)
	require.NoError(t, err)
	b, err := os.ReadFile(path)
	require.NoError(t, err)
	require.Contains(t, string(b), "jqual_session_rounds_total 3")
	require.Contains(t, string(b), "jqual_session_methods_analyzed_total 12")
}

func TestFailedMethods(t *testing.T) {
	t.Parallel()

	broken := writeFile(t, "broken.yaml", _broken)
	_, stderr, err := execute(t, "--log-level", "error", "--pretty", broken)
	require.ErrorContains(t, err, "analysis failed for 1 methods")
	require.Contains(t, stderr, "\x1b[31merror: \x1b[0m")
	require.Contains(t, stderr, "test/Broken.underflow()Ljava/lang/Object;")
}

func TestErrors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		args []string
		err  string
	}{
		{name: "no program", args: []string{}, err: "requires at least 1 arg"},
		{name: "missing program", args: []string{"missing.yaml"}, err: "missing.yaml"},
		{name: "unknown format", args: []string{"--format", "json", _interprocedural}, err: `unknown output format "json"`},
		{name: "bad mode", args: []string{"--mode", "partial", _interprocedural}, err: "invalid config"},
		{name: "missing config", args: []string{"--config", "missing.yaml", _interprocedural}, err: "open config"},
		{name: "missing prior", args: []string{"--prior", "missing.snap", _interprocedural}, err: "open prior snapshot"},
		{name: "bad log level", args: []string{"--log-level", "loud", _interprocedural}, err: `unknown log level "loud"`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			_, _, err := execute(t, tt.args...)
			require.ErrorContains(t, err, tt.err)
		})
	}
}

func TestSlot(t *testing.T) {
	t.Parallel()

	stdout, _, err := execute(t, "--format", "text", _interprocedural)
	require.NoError(t, err)
	for _, line := range strings.Split(strings.TrimSpace(stdout), "\n") {
		require.Regexp(t, "^`com/acme/Calle[er]\\.[a-z]+\\(.*` (param 0|return): @(NotNull|Nullable)$", line)
	}
}

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}
