// Package operator implements the terminal prompt that stops the agent.
//
// The prompt prints "Press Q to quit" and reads a line. q or Q ends the
// wait, as does Ctrl-C while the terminal is in raw mode. Any other line is
// ignored and the prompt is shown again. When stdin reaches EOF, for
// example under systemd, the prompt stops reading and the agent runs until
// it is signalled.
package operator
