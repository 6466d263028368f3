package account

import "fmt"

// DevicePath returns the hardware-wallet derivation path for the account
// number: m/44'/607'/<network>'/0'/<index>'/0' where network is 1 on testnet.
func DevicePath(index int, testnet bool) string {
	network := 0
	if testnet {
		network = 1
	}

	return fmt.Sprintf("m/44'/607'/%d'/0'/%d'/0'", network, index)
}
