package synth

import (
	"bufio"
	"context"
	"encoding/base64"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"os/exec"

	"github.com/mattn/go-shellwords"
)

// ExecBackend talks to a long-lived helper process (typically a thin
// wrapper around the Coqui TTS Python API) over JSON lines on
// stdin/stdout. The helper is started per Construct call and keeps the
// loaded model in memory for the lifetime of the element.
type ExecBackend struct {
	cmd []string
}

type loadRequest struct {
	Op              string `json:"op"`
	Model           string `json:"model"`
	UseAcceleration bool   `json:"use_acceleration"`
	ShowProgress    bool   `json:"show_progress"`
}

type loadResponse struct {
	MultiLingual bool   `json:"multi_lingual"`
	MultiSpeaker bool   `json:"multi_speaker"`
	SampleRate   int    `json:"sample_rate"`
	Error        string `json:"error,omitempty"`
}

type synthRequest struct {
	Op       string `json:"op"`
	Text     string `json:"text"`
	Speaker  string `json:"speaker,omitempty"`
	Language string `json:"language,omitempty"`
	VoiceRef string `json:"speaker_wav,omitempty"`
}

type synthResponse struct {
	SamplesBase64 string `json:"samples_base64"`
	Error         string `json:"error,omitempty"`
}

func NewExecBackend(command string) (*ExecBackend, error) {
	parser := shellwords.NewParser()
	args, err := parser.Parse(command)
	if err != nil {
		return nil, fmt.Errorf("parse backend command: %w", err)
	}
	if len(args) == 0 {
		return nil, fmt.Errorf("backend command empty")
	}
	return &ExecBackend{cmd: args}, nil
}

func (e *ExecBackend) Construct(ctx context.Context, model string, useAcceleration bool) (Handle, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	base := e.cmd[0]
	args := append([]string{}, e.cmd[1:]...)
	cmd := exec.Command(base, args...)
	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, err
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, err
	}
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("start backend helper: %w", err)
	}

	h := &execHandle{
		cmd:    cmd,
		stdin:  stdin,
		stdout: bufio.NewReader(stdout),
	}

	load := loadRequest{Op: "load", Model: model, UseAcceleration: useAcceleration, ShowProgress: false}
	var resp loadResponse
	if err := h.roundTrip(load, &resp); err != nil {
		h.kill()
		return nil, fmt.Errorf("load model %q: %w", model, err)
	}
	if resp.Error != "" {
		h.kill()
		return nil, fmt.Errorf("load model %q: %s", model, resp.Error)
	}

	h.multiLingual = resp.MultiLingual
	h.multiSpeaker = resp.MultiSpeaker
	h.sampleRate = resp.SampleRate
	return h, nil
}

type execHandle struct {
	cmd    *exec.Cmd
	stdin  io.WriteCloser
	stdout *bufio.Reader

	multiLingual bool
	multiSpeaker bool
	sampleRate   int
}

func (h *execHandle) MultiLingual() bool    { return h.multiLingual }
func (h *execHandle) MultiSpeaker() bool    { return h.multiSpeaker }
func (h *execHandle) OutputSampleRate() int { return h.sampleRate }

func (h *execHandle) Synthesize(ctx context.Context, req Request) ([]float32, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	var resp synthResponse
	err := h.roundTrip(synthRequest{
		Op:       "synthesize",
		Text:     req.Text,
		Speaker:  req.Speaker,
		Language: req.Language,
		VoiceRef: req.VoiceRef,
	}, &resp)
	if err != nil {
		return nil, err
	}
	if resp.Error != "" {
		return nil, fmt.Errorf("backend synthesis: %s", resp.Error)
	}
	raw, err := base64.StdEncoding.DecodeString(resp.SamplesBase64)
	if err != nil {
		return nil, fmt.Errorf("decode samples: %w", err)
	}
	return decodeSamples(raw)
}

// roundTrip writes one request line and blocks until the helper answers.
// There is deliberately no timeout: construction and synthesis block for as
// long as the backend takes.
func (h *execHandle) roundTrip(req any, resp any) error {
	data, err := json.Marshal(req)
	if err != nil {
		return err
	}
	data = append(data, '\n')
	if _, err := h.stdin.Write(data); err != nil {
		return fmt.Errorf("write to backend helper: %w", err)
	}
	line, err := h.stdout.ReadBytes('\n')
	if err != nil {
		return fmt.Errorf("read from backend helper: %w", err)
	}
	if err := json.Unmarshal(line, resp); err != nil {
		return fmt.Errorf("decode backend response: %w", err)
	}
	return nil
}

func (h *execHandle) kill() {
	h.stdin.Close()
	if h.cmd.Process != nil {
		_ = h.cmd.Process.Kill()
	}
	_ = h.cmd.Wait()
}

// decodeSamples interprets raw bytes as sequential little-endian float32
// samples.
func decodeSamples(raw []byte) ([]float32, error) {
	if len(raw)%4 != 0 {
		return nil, fmt.Errorf("sample payload length %d is not a multiple of 4", len(raw))
	}
	samples := make([]float32, len(raw)/4)
	for i := range samples {
		bits := binary.LittleEndian.Uint32(raw[i*4:])
		samples[i] = math.Float32frombits(bits)
	}
	return samples, nil
}
