// SPDX-License-Identifier: GPL-3.0-only

package commons

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"sync"

	"github.com/joho/godotenv"
)

var envOnce sync.Once

// LoadEnvFile loads variables from the file given with --env-file, if any.
// Variables already present in the environment are not overridden.
func LoadEnvFile() {
	envOnce.Do(func() {
		envFile := envFileFromArgs(os.Args[1:])
		if envFile == "" {
			return
		}
		fmt.Printf("Loading environment variables from file: %s\n", envFile)
		if err := godotenv.Load(envFile); err != nil {
			fmt.Printf("Failed to load env file: %s\n", err)
		}
	})
}

func envFileFromArgs(args []string) string {
	for i, arg := range args {
		if arg == "--env-file" && i+1 < len(args) {
			return args[i+1]
		}
		if after, ok := strings.CutPrefix(arg, "--env-file="); ok {
			return after
		}
	}
	return ""
}

// GetEnv returns the value of key, or the first fallback when unset or empty.
func GetEnv(key string, fallback ...string) string {
	LoadEnvFile()
	if v := os.Getenv(key); v != "" {
		return v
	}
	if len(fallback) > 0 {
		return fallback[0]
	}
	return ""
}

func GetEnvInt(key string, fallback int) int {
	v := GetEnv(key)
	if v == "" {
		return fallback
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		Logger.Warnf("Invalid integer for %s=%q, using %d", key, v, fallback)
		return fallback
	}
	return i
}

func GetEnvFloat(key string, fallback float64) float64 {
	v := GetEnv(key)
	if v == "" {
		return fallback
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		Logger.Warnf("Invalid number for %s=%q, using %v", key, v, fallback)
		return fallback
	}
	return f
}

func GetEnvBool(key string, fallback bool) bool {
	v := GetEnv(key)
	if v == "" {
		return fallback
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return fallback
	}
	return b
}
