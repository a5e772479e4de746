package config

import "os"

func IsDebug() bool {
	return os.Getenv("OSSEUS_DEBUG") == "1"
}
