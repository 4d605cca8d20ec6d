//go:build tools

package benor

import (
	_ "github.com/golang/mock/mockgen"
)
