package main

import (
	"fmt"

	"github.com/snapdisk/snapdisk/pkg/trust"
)

func runKeygen(args []string) error {
	if len(args) != 2 {
		return fmt.Errorf("usage: snapdisk keygen <server-file> <client-file>")
	}
	return trust.CreateServerClientKeys(args[0], args[1])
}
