package logging

import (
	"testing"

	"github.com/rs/zerolog"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in   string
		want zerolog.Level
	}{
		{"debug", zerolog.DebugLevel},
		{"DEBUG", zerolog.DebugLevel},
		{" warn ", zerolog.WarnLevel},
		{"error", zerolog.ErrorLevel},
		{"info", zerolog.InfoLevel},
		{"", zerolog.InfoLevel},
		{"verbose", zerolog.InfoLevel},
	}
	for _, tt := range tests {
		if got := ParseLevel(tt.in); got != tt.want {
			t.Errorf("ParseLevel(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestInit_FallsBackToEnv(t *testing.T) {
	old := zerolog.GlobalLevel()
	defer zerolog.SetGlobalLevel(old)

	t.Setenv(LevelEnvVar, "error")
	Init("")
	if zerolog.GlobalLevel() != zerolog.ErrorLevel {
		t.Errorf("expected error level from env, got %v", zerolog.GlobalLevel())
	}

	Init("debug")
	if zerolog.GlobalLevel() != zerolog.DebugLevel {
		t.Errorf("explicit level should win over env, got %v", zerolog.GlobalLevel())
	}
}

func TestStartupLogger_Chaining(t *testing.T) {
	s := NewStartupLogger("camera-agent").
		Version("1.2.3").
		S3Bucket("images", "bucket").
		DynamoTable("seen", "table").
		Topic("in", "pyzcam/in").
		Collection("faces", "security-camera").
		Feature("dynamoMirror", true).
		Config("interval", "3s")

	if s.version != "1.2.3" {
		t.Errorf("expected version 1.2.3, got %s", s.version)
	}
	if s.s3Buckets["images"] != "bucket" {
		t.Error("S3Bucket not recorded")
	}
	if s.topics["in"] != "pyzcam/in" {
		t.Error("Topic not recorded")
	}
	if !s.features["dynamoMirror"] {
		t.Error("Feature not recorded")
	}
	if s.collections["faces"] != "security-camera" {
		t.Error("Collection not recorded")
	}
	s.Log()
}
