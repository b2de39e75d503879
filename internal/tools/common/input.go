package common

import (
	"bufio"
	"errors"
	"io"
	"strings"
)

var ErrEmptySecret = errors.New("no password provided on stdin")

// ReadSecret reads the first line of r, without its line terminator. It is
// used for passwords piped on stdin so they never appear in argv.
func ReadSecret(r io.Reader) ([]byte, error) {
	line, err := bufio.NewReader(r).ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return nil, err
	}
	line = strings.TrimRight(line, "\r\n")
	if line == "" {
		return nil, ErrEmptySecret
	}
	return []byte(line), nil
}
