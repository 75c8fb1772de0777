//go:build mage
// +build mage

package main

import (
	"os"

	"github.com/magefile/mage/mg"
	"github.com/magefile/mage/sh"
)

var Default = Build

func Build() error {
	return sh.Run(mg.GoCmd(), "build", "./...")
}

func Test() error {
	args := []string{"test"}
	if mg.Verbose() {
		args = append(args, "-v")
	}
	args = append(args, "./...")
	return sh.Run(mg.GoCmd(), args...)
}

// TestPG runs the Postgresql store tests against the database named by $H5_PG_TESTING_CONN.
func TestPG() error {
	if os.Getenv("H5_PG_TESTING_CONN") == "" {
		return mg.Fatal(1, "set H5_PG_TESTING_CONN to a valid Postgresql connection string")
	}
	return sh.Run(mg.GoCmd(), "test", "-count=1", "./store/pg")
}

// Install builds and installs the h5 command.
func Install() error {
	mg.Deps(Test)
	return sh.Run(mg.GoCmd(), "install", "./cmd/h5")
}
