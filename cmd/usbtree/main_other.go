//go:build !linux

package main

import (
	"os"

	"github.com/ardnew/usbtree/pkg"
)

func main() {
	pkg.LogError(pkg.ComponentCmd, "usbtree requires Linux sysfs", "error", pkg.ErrNotSupported)
	os.Exit(1)
}
