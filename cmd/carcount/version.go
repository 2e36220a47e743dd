package main

import (
	"fmt"

	"github.com/roadtally/carcount/internal/version"
)

func versionString() string {
	return fmt.Sprintf("%s (%s, built %s)", version.Version, version.GitSHA, version.BuildTime)
}
