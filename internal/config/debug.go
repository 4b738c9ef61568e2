package config

import "os"

func IsDebug() bool {
	return os.Getenv("MOCHI_DEBUG") == "1"
}
