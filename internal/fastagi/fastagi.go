package fastagi

import (
	"bufio"
	"fmt"
	"strconv"
	"strings"
)

// maxEnvLines bounds the request env block so a misbehaving client cannot
// make the daemon buffer forever.
const maxEnvLines = 256

// Request is one decoded FastAGI request: the env block sent by the switch
// when the connection opens, the positional arguments, and the writer used
// to issue AGI commands back over the same connection.
type Request struct {
	env  map[string]string
	args []string

	r *bufio.Reader
	w *bufio.Writer
}

// ReadRequest decodes the FastAGI env block from r: "key: value" lines
// terminated by a blank line, with positional arguments carried as
// agi_arg_1..agi_arg_N.
func ReadRequest(r *bufio.Reader, w *bufio.Writer) (*Request, error) {
	env := make(map[string]string)

	for i := 0; ; i++ {
		if i >= maxEnvLines {
			return nil, fmt.Errorf("fastagi: env block exceeds %d lines", maxEnvLines)
		}

		line, err := r.ReadString('\n')
		if err != nil {
			return nil, fmt.Errorf("fastagi: reading env block: %w", err)
		}

		line = strings.TrimRight(line, "\r\n")
		if line == "" {
			break
		}

		key, value, found := strings.Cut(line, ":")
		if !found {
			return nil, fmt.Errorf("fastagi: malformed env line %q", line)
		}

		env[strings.TrimSpace(key)] = strings.TrimSpace(value)
	}

	if len(env) == 0 {
		return nil, fmt.Errorf("fastagi: empty env block")
	}

	var args []string
	for i := 1; ; i++ {
		arg, ok := env[fmt.Sprintf("agi_arg_%d", i)]
		if !ok {
			break
		}
		args = append(args, arg)
	}

	return &Request{env: env, args: args, r: r, w: w}, nil
}

// Env returns the value of one env block field, e.g. "agi_callerid".
func (req *Request) Env(key string) string {
	return req.env[key]
}

// Script is the handler name requested by the switch, from the
// agi_network_script field of the env block.
func (req *Request) Script() string {
	return strings.TrimPrefix(req.env["agi_network_script"], "/")
}

// Args returns the positional arguments in order.
func (req *Request) Args() []string {
	return req.args
}

// Verbose sends an informational VERBOSE message to the switch.
func (req *Request) Verbose(msg string) error {
	_, _, err := req.send(fmt.Sprintf("VERBOSE %s 1", quote(msg)))
	return err
}

// AppExec runs a dialplan application on the channel. The switch reports an
// unknown application with result -2.
func (req *Request) AppExec(app, args string) error {
	_, result, err := req.send(fmt.Sprintf("EXEC %s %s", app, quote(args)))
	if err != nil {
		return err
	}
	if result == "-2" {
		return fmt.Errorf("fastagi: application %q not found", app)
	}
	return nil
}

// GetVariable reads a channel variable. An unset variable yields an empty
// string, not an error.
func (req *Request) GetVariable(name string) (string, error) {
	line, result, err := req.send(fmt.Sprintf("GET VARIABLE %s", name))
	if err != nil {
		return "", err
	}
	if result == "0" {
		return "", nil
	}

	start := strings.IndexByte(line, '(')
	end := strings.LastIndexByte(line, ')')
	if start < 0 || end <= start {
		return "", nil
	}
	return line[start+1 : end], nil
}

// SetVariable sets a channel variable.
func (req *Request) SetVariable(name, value string) error {
	_, _, err := req.send(fmt.Sprintf("SET VARIABLE %s %s", name, quote(value)))
	return err
}

// Fail marks the AGI session failed so the dialplan sees AGISTATUS=FAILURE.
func (req *Request) Fail() error {
	return req.SetVariable("AGISTATUS", "FAILURE")
}

// send issues one AGI command and parses the status reply. It returns the
// raw reply line and the result= token.
func (req *Request) send(cmd string) (string, string, error) {
	if _, err := req.w.WriteString(cmd + "\n"); err != nil {
		return "", "", fmt.Errorf("fastagi: writing command: %w", err)
	}
	if err := req.w.Flush(); err != nil {
		return "", "", fmt.Errorf("fastagi: flushing command: %w", err)
	}

	line, err := req.r.ReadString('\n')
	if err != nil {
		return "", "", fmt.Errorf("fastagi: reading reply: %w", err)
	}
	line = strings.TrimRight(line, "\r\n")

	code, result, err := parseStatus(line)
	if err != nil {
		return "", "", err
	}
	if code != 200 {
		return "", "", fmt.Errorf("fastagi: command %q refused: %s", cmd, line)
	}

	return line, result, nil
}

func parseStatus(line string) (int, string, error) {
	codeStr, rest, found := strings.Cut(line, " ")
	if !found {
		return 0, "", fmt.Errorf("fastagi: malformed reply %q", line)
	}

	code, err := strconv.Atoi(codeStr)
	if err != nil {
		return 0, "", fmt.Errorf("fastagi: malformed reply code %q", line)
	}

	var result string
	if after, ok := strings.CutPrefix(rest, "result="); ok {
		result, _, _ = strings.Cut(after, " ")
	}

	return code, result, nil
}

func quote(s string) string {
	s = strings.ReplaceAll(s, "\n", " ")
	s = strings.ReplaceAll(s, `"`, `\"`)
	return `"` + s + `"`
}
