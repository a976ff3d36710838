package command

import (
	"fmt"

	"github.com/urfave/cli/v2"

	"github.com/yndnr/worldsave/pkg/crypto/adaptive"
)

// KeygenCommand returns the keygen command.
func KeygenCommand() *cli.Command {
	return &cli.Command{
		Name:  "keygen",
		Usage: "Generate a slot encryption key",
		Description: "Prints a random key for storage.encryption.key or --encryption-key.\n" +
			"Slots sealed with a lost key cannot be recovered.",
		Action: func(c *cli.Context) error {
			key, err := adaptive.GenerateKey()
			if err != nil {
				return err
			}
			fmt.Fprintln(stdout(c), adaptive.EncodeKey(key))
			return nil
		},
	}
}
