// Package main 提供 volguard 命令行工具：为卷集合盖章、分析损坏情况并重建缺失的卷
package main

import (
	"fmt"
	"os"

	"github.com/cockroachdb/errors"
)

func main() {
	err := newRootCommand().Execute()
	if err == nil {
		return
	}

	var exit *exitError
	if errors.As(err, &exit) {
		if exit.err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", exit.err)
		}
		os.Exit(exit.code)
	}

	fmt.Fprintf(os.Stderr, "Error: %v\n", err)
	os.Exit(exitFailure)
}
