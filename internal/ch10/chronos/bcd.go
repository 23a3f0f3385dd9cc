package chronos

import ch10err "github.com/alxayo/ch10parse/internal/errors"

// decodeIRIGDayOfYear decodes the 8-byte packed-BCD day-of-year time word
// used by Time-F1 TDP packets (original_source/ reference layout), and
// returns nanoseconds elapsed since midnight on day 1 of the current year.
// Layout (little-endian byte order, each byte two BCD digits tens|ones):
//
//	byte 0-1: milliseconds-of-second (0-999, 3 BCD digits across 12 bits)
//	byte 2:   seconds (0-59)
//	byte 3:   minutes (0-59)
//	byte 4:   hours   (0-23)
//	byte 5-6: day-of-year (1-366, 3 BCD digits across 12 bits)
//	byte 7:   reserved
func decodeIRIGDayOfYear(raw []byte) (uint64, error) {
	if len(raw) != 8 {
		return 0, ch10err.NewInvalidIntrapktTsSrcError("chronos.decodeIRIGDayOfYear", nil)
	}

	msHundreds := bcdDigit(raw[1], 0)
	msTens := bcdDigit(raw[0], 1)
	msOnes := bcdDigit(raw[0], 0)
	ms := uint64(msHundreds)*100 + uint64(msTens)*10 + uint64(msOnes)

	sec, err := bcdByte(raw[2], 59)
	if err != nil {
		return 0, err
	}
	mins, err := bcdByte(raw[3], 59)
	if err != nil {
		return 0, err
	}
	hrs, err := bcdByte(raw[4], 23)
	if err != nil {
		return 0, err
	}

	dayHundreds := bcdDigit(raw[6], 0)
	dayTens := bcdDigit(raw[5], 1)
	dayOnes := bcdDigit(raw[5], 0)
	day := uint64(dayHundreds)*100 + uint64(dayTens)*10 + uint64(dayOnes)
	if day < 1 || day > 366 {
		return 0, ch10err.NewInvalidIntrapktTsSrcError("chronos.decodeIRIGDayOfYear: day-of-year out of range", nil)
	}

	secondsOfDay := uint64(hrs)*3600 + uint64(mins)*60 + uint64(sec)
	secondsOfYear := (day-1)*86400 + secondsOfDay
	return secondsOfYear*1e9 + ms*1e6, nil
}

// bcdDigit extracts the high (nibbleIndex=1) or low (nibbleIndex=0) BCD
// digit from b.
func bcdDigit(b byte, nibbleIndex int) uint8 {
	if nibbleIndex == 1 {
		return b >> 4
	}
	return b & 0x0F
}

// bcdByte decodes a two-digit BCD byte (tens in the high nibble, ones in the
// low nibble) and validates it against max.
func bcdByte(b byte, max uint8) (uint8, error) {
	tens := bcdDigit(b, 1)
	ones := bcdDigit(b, 0)
	if tens > 9 || ones > 9 {
		return 0, ch10err.NewInvalidIntrapktTsSrcError("chronos.bcdByte: invalid BCD digit", nil)
	}
	v := tens*10 + ones
	if v > max {
		return 0, ch10err.NewInvalidIntrapktTsSrcError("chronos.bcdByte: field out of range", nil)
	}
	return v, nil
}
