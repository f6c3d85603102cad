package tier1

// clearFlagsFast zeroes a block's significance/context flags.
func clearFlagsFast(flags []T1Flags) {
	for i := range flags {
		flags[i] = 0
	}
}
