package core

import "encoding/hex"

func addrHex(addr [20]byte) string {
	return "0x" + hex.EncodeToString(addr[:])
}

func idHex(id [32]byte) string {
	return "0x" + hex.EncodeToString(id[:])
}
