package config

import "github.com/joho/godotenv"

// LoadDotEnv reads .env style files into the environment. Variables already
// set are left alone. A missing file is returned as an error the caller may ignore.
func LoadDotEnv(paths ...string) error {
	return godotenv.Load(paths...)
}
