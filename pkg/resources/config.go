package resources

import (
	"encoding/binary"
	"fmt"
	"strings"
)

// Configuration axis bits. Type-spec flag words and Diff results are
// unions of these.
const (
	ConfigMCC                uint32 = 0x0001
	ConfigMNC                uint32 = 0x0002
	ConfigLocale             uint32 = 0x0004
	ConfigTouchscreen        uint32 = 0x0008
	ConfigKeyboard           uint32 = 0x0010
	ConfigKeyboardHidden     uint32 = 0x0020
	ConfigNavigation         uint32 = 0x0040
	ConfigOrientation        uint32 = 0x0080
	ConfigDensity            uint32 = 0x0100
	ConfigScreenSize         uint32 = 0x0200
	ConfigVersion            uint32 = 0x0400
	ConfigScreenLayout       uint32 = 0x0800
	ConfigUIMode             uint32 = 0x1000
	ConfigSmallestScreenSize uint32 = 0x2000
	ConfigLayoutDir          uint32 = 0x4000
	ConfigScreenRound        uint32 = 0x8000
	ConfigColorMode          uint32 = 0x10000
)

// Orientation values.
const (
	OrientationAny    uint8 = 0
	OrientationPort   uint8 = 1
	OrientationLand   uint8 = 2
	OrientationSquare uint8 = 3
)

// Touchscreen values.
const (
	TouchscreenAny     uint8 = 0
	TouchscreenNoTouch uint8 = 1
	TouchscreenStylus  uint8 = 2
	TouchscreenFinger  uint8 = 3
)

// Density values. Anything else is a literal dpi count.
const (
	DensityDefault uint16 = 0
	DensityLow     uint16 = 120
	DensityMedium  uint16 = 160
	DensityTV      uint16 = 213
	DensityHigh    uint16 = 240
	DensityXHigh   uint16 = 320
	DensityXXHigh  uint16 = 480
	DensityXXXHigh uint16 = 640
	DensityAny     uint16 = 0xfffe
	DensityNone    uint16 = 0xffff
)

// Keyboard values.
const (
	KeyboardAny    uint8 = 0
	KeyboardNoKeys uint8 = 1
	KeyboardQwerty uint8 = 2
	Keyboard12Key  uint8 = 3
)

// Navigation values.
const (
	NavigationAny       uint8 = 0
	NavigationNoNav     uint8 = 1
	NavigationDPad      uint8 = 2
	NavigationTrackball uint8 = 3
	NavigationWheel     uint8 = 4
)

// InputFlags bit fields.
const (
	MaskKeysHidden uint8 = 0x03
	KeysHiddenAny  uint8 = 0x00
	KeysHiddenNo   uint8 = 0x01
	KeysHiddenYes  uint8 = 0x02
	KeysHiddenSoft uint8 = 0x03

	MaskNavHidden uint8 = 0x0c
	NavHiddenAny  uint8 = 0x00
	NavHiddenNo   uint8 = 0x04
	NavHiddenYes  uint8 = 0x08
)

// ScreenLayout bit fields.
const (
	MaskScreenSize   uint8 = 0x0f
	ScreenSizeAny    uint8 = 0x00
	ScreenSizeSmall  uint8 = 0x01
	ScreenSizeNormal uint8 = 0x02
	ScreenSizeLarge  uint8 = 0x03
	ScreenSizeXLarge uint8 = 0x04

	MaskScreenLong uint8 = 0x30
	ScreenLongAny  uint8 = 0x00
	ScreenLongNo   uint8 = 0x10
	ScreenLongYes  uint8 = 0x20

	MaskLayoutDir uint8 = 0xc0
	LayoutDirAny  uint8 = 0x00
	LayoutDirLTR  uint8 = 0x40
	LayoutDirRTL  uint8 = 0x80
)

// UIMode bit fields.
const (
	MaskUIModeType       uint8 = 0x0f
	UIModeTypeAny        uint8 = 0x00
	UIModeTypeNormal     uint8 = 0x01
	UIModeTypeDesk       uint8 = 0x02
	UIModeTypeCar        uint8 = 0x03
	UIModeTypeTelevision uint8 = 0x04
	UIModeTypeAppliance  uint8 = 0x05
	UIModeTypeWatch      uint8 = 0x06
	UIModeTypeVRHeadset  uint8 = 0x07

	MaskUIModeNight uint8 = 0x30
	UIModeNightAny  uint8 = 0x00
	UIModeNightNo   uint8 = 0x10
	UIModeNightYes  uint8 = 0x20
)

// ScreenLayout2 bit fields.
const (
	MaskScreenRound uint8 = 0x03
	ScreenRoundAny  uint8 = 0x00
	ScreenRoundNo   uint8 = 0x01
	ScreenRoundYes  uint8 = 0x02
)

// ColorMode bit fields.
const (
	MaskWideColorGamut uint8 = 0x03
	WideColorGamutAny  uint8 = 0x00
	WideColorGamutNo   uint8 = 0x01
	WideColorGamutYes  uint8 = 0x02

	MaskHDR uint8 = 0x0c
	HDRAny  uint8 = 0x00
	HDRNo   uint8 = 0x04
	HDRYes  uint8 = 0x08
)

// ConfigSize is the canonical serialized size of a configuration record.
const ConfigSize = 52

// Config is the set of device axes a resource entry can be keyed on. The
// zero value is the default configuration that matches everything.
type Config struct {
	MCC uint16
	MNC uint16

	// Two-letter codes are stored raw; three-letter codes use the packed
	// encoding, see packLanguageOrRegion.
	Language [2]uint8
	Country  [2]uint8

	Orientation uint8
	Touchscreen uint8
	Density     uint16

	Keyboard   uint8
	Navigation uint8
	InputFlags uint8

	ScreenWidth  uint16
	ScreenHeight uint16

	SDKVersion   uint16
	MinorVersion uint16

	ScreenLayout          uint8
	UIMode                uint8
	SmallestScreenWidthDp uint16

	ScreenWidthDp  uint16
	ScreenHeightDp uint16

	LocaleScript  [4]uint8
	LocaleVariant [8]uint8

	ScreenLayout2 uint8
	ColorMode     uint8
}

// ParseConfig decodes one configuration record from the start of data.
// The record declares its own size; shorter records from older tools are
// zero-filled and longer ones have their tail ignored. Returns the
// decoded config and the declared size so callers can skip past it.
func ParseConfig(data []byte) (Config, int, error) {
	if len(data) < 4 {
		return Config{}, 0, ErrMalformed
	}
	size := int(binary.LittleEndian.Uint32(data[0:4]))
	if size < 4 || size > len(data) {
		return Config{}, 0, ErrMalformed
	}

	var raw [ConfigSize]byte
	n := size
	if n > ConfigSize {
		n = ConfigSize
	}
	copy(raw[:], data[:n])

	var c Config
	c.MCC = binary.LittleEndian.Uint16(raw[4:6])
	c.MNC = binary.LittleEndian.Uint16(raw[6:8])
	copy(c.Language[:], raw[8:10])
	copy(c.Country[:], raw[10:12])
	c.Orientation = raw[12]
	c.Touchscreen = raw[13]
	c.Density = binary.LittleEndian.Uint16(raw[14:16])
	c.Keyboard = raw[16]
	c.Navigation = raw[17]
	c.InputFlags = raw[18]
	c.ScreenWidth = binary.LittleEndian.Uint16(raw[20:22])
	c.ScreenHeight = binary.LittleEndian.Uint16(raw[22:24])
	c.SDKVersion = binary.LittleEndian.Uint16(raw[24:26])
	c.MinorVersion = binary.LittleEndian.Uint16(raw[26:28])
	c.ScreenLayout = raw[28]
	c.UIMode = raw[29]
	c.SmallestScreenWidthDp = binary.LittleEndian.Uint16(raw[30:32])
	c.ScreenWidthDp = binary.LittleEndian.Uint16(raw[32:34])
	c.ScreenHeightDp = binary.LittleEndian.Uint16(raw[34:36])
	copy(c.LocaleScript[:], raw[36:40])
	copy(c.LocaleVariant[:], raw[40:48])
	c.ScreenLayout2 = raw[48]
	c.ColorMode = raw[49]
	return c, size, nil
}

// Pack serializes the configuration in its canonical form.
func (c *Config) Pack() []byte {
	buf := make([]byte, ConfigSize)
	binary.LittleEndian.PutUint32(buf[0:4], ConfigSize)
	binary.LittleEndian.PutUint16(buf[4:6], c.MCC)
	binary.LittleEndian.PutUint16(buf[6:8], c.MNC)
	copy(buf[8:10], c.Language[:])
	copy(buf[10:12], c.Country[:])
	buf[12] = c.Orientation
	buf[13] = c.Touchscreen
	binary.LittleEndian.PutUint16(buf[14:16], c.Density)
	buf[16] = c.Keyboard
	buf[17] = c.Navigation
	buf[18] = c.InputFlags
	binary.LittleEndian.PutUint16(buf[20:22], c.ScreenWidth)
	binary.LittleEndian.PutUint16(buf[22:24], c.ScreenHeight)
	binary.LittleEndian.PutUint16(buf[24:26], c.SDKVersion)
	binary.LittleEndian.PutUint16(buf[26:28], c.MinorVersion)
	buf[28] = c.ScreenLayout
	buf[29] = c.UIMode
	binary.LittleEndian.PutUint16(buf[30:32], c.SmallestScreenWidthDp)
	binary.LittleEndian.PutUint16(buf[32:34], c.ScreenWidthDp)
	binary.LittleEndian.PutUint16(buf[34:36], c.ScreenHeightDp)
	copy(buf[36:40], c.LocaleScript[:])
	copy(buf[40:48], c.LocaleVariant[:])
	buf[48] = c.ScreenLayout2
	buf[49] = c.ColorMode
	return buf
}

// IsDefault reports whether no axis is set.
func (c *Config) IsDefault() bool {
	return *c == Config{}
}

// Match reports whether this config is acceptable under the given device
// settings: every axis this config pins must agree with (or be within)
// the settings, and unset axes always pass. A nil settings means the
// default configuration.
func (c *Config) Match(settings *Config) bool {
	if settings == nil {
		settings = &Config{}
	}

	// imsi
	if settings.MCC == 0 {
		if c.MCC != 0 {
			return false
		}
	} else if c.MCC != 0 && c.MCC != settings.MCC {
		return false
	}
	if settings.MNC == 0 {
		if c.MNC != 0 {
			return false
		}
	} else if c.MNC != 0 && c.MNC != settings.MNC {
		return false
	}

	// locale
	if settings.Language[0] != 0 && c.Language[0] != 0 &&
		c.Language != settings.Language {
		return false
	}
	if settings.Country[0] != 0 && c.Country[0] != 0 &&
		c.Country != settings.Country {
		return false
	}
	if settings.LocaleScript[0] != 0 && c.LocaleScript[0] != 0 &&
		c.LocaleScript != settings.LocaleScript {
		return false
	}
	if settings.LocaleVariant[0] != 0 && c.LocaleVariant[0] != 0 &&
		c.LocaleVariant != settings.LocaleVariant {
		return false
	}

	// layout direction
	if dir := c.ScreenLayout & MaskLayoutDir; dir != 0 &&
		dir != settings.ScreenLayout&MaskLayoutDir {
		return false
	}

	// screen size bucket: a config for a larger bucket than the device
	// never matches, a smaller one does
	if size := c.ScreenLayout & MaskScreenSize; size != 0 &&
		size > settings.ScreenLayout&MaskScreenSize {
		return false
	}
	if long := c.ScreenLayout & MaskScreenLong; long != 0 &&
		long != settings.ScreenLayout&MaskScreenLong {
		return false
	}

	// round screen
	if round := c.ScreenLayout2 & MaskScreenRound; round != 0 &&
		round != settings.ScreenLayout2&MaskScreenRound {
		return false
	}

	// color mode
	if gamut := c.ColorMode & MaskWideColorGamut; gamut != 0 &&
		gamut != settings.ColorMode&MaskWideColorGamut {
		return false
	}
	if hdr := c.ColorMode & MaskHDR; hdr != 0 &&
		hdr != settings.ColorMode&MaskHDR {
		return false
	}

	// ui mode
	if mode := c.UIMode & MaskUIModeType; mode != 0 &&
		mode != settings.UIMode&MaskUIModeType {
		return false
	}
	if night := c.UIMode & MaskUIModeNight; night != 0 &&
		night != settings.UIMode&MaskUIModeNight {
		return false
	}

	// width buckets in dp
	if c.SmallestScreenWidthDp != 0 &&
		c.SmallestScreenWidthDp > settings.SmallestScreenWidthDp {
		return false
	}
	if c.ScreenWidthDp != 0 && c.ScreenWidthDp > settings.ScreenWidthDp {
		return false
	}
	if c.ScreenHeightDp != 0 && c.ScreenHeightDp > settings.ScreenHeightDp {
		return false
	}

	// screen type; density never filters, best-fit handles it
	if c.Orientation != 0 && c.Orientation != settings.Orientation {
		return false
	}
	if c.Touchscreen != 0 && c.Touchscreen != settings.Touchscreen {
		return false
	}

	// input
	if c.InputFlags != 0 {
		keysHidden := c.InputFlags & MaskKeysHidden
		setKeysHidden := settings.InputFlags & MaskKeysHidden
		if keysHidden != 0 && keysHidden != setKeysHidden {
			// a soft keyboard still counts as keys exposed
			if keysHidden != KeysHiddenNo || setKeysHidden != KeysHiddenSoft {
				return false
			}
		}
		navHidden := c.InputFlags & MaskNavHidden
		setNavHidden := settings.InputFlags & MaskNavHidden
		if navHidden != 0 && navHidden != setNavHidden {
			return false
		}
	}
	if c.Keyboard != 0 && c.Keyboard != settings.Keyboard {
		return false
	}
	if c.Navigation != 0 && c.Navigation != settings.Navigation {
		return false
	}

	// screen size in px
	if c.ScreenWidth != 0 && c.ScreenWidth > settings.ScreenWidth {
		return false
	}
	if c.ScreenHeight != 0 && c.ScreenHeight > settings.ScreenHeight {
		return false
	}

	// version
	if settings.SDKVersion != 0 && c.SDKVersion != 0 &&
		c.SDKVersion > settings.SDKVersion {
		return false
	}
	if settings.MinorVersion != 0 && c.MinorVersion != 0 &&
		c.MinorVersion != settings.MinorVersion {
		return false
	}

	return true
}

// IsBetterThan reports whether this config is a better fit than o for a
// device running with the requested settings. Both receivers are assumed
// to already Match the settings. Axes are consulted in fixed priority
// order; the first one where the candidates differ decides.
func (c *Config) IsBetterThan(o *Config, requested *Config) bool {
	if requested == nil {
		return c.IsMoreSpecificThan(o)
	}

	// imsi
	if c.MCC != 0 || c.MNC != 0 || o.MCC != 0 || o.MNC != 0 {
		if c.MCC != o.MCC && requested.MCC != 0 {
			return c.MCC != 0
		}
		if c.MNC != o.MNC && requested.MNC != 0 {
			return c.MNC != 0
		}
	}

	// locale
	if c.Language[0] != 0 || c.Country[0] != 0 || o.Language[0] != 0 || o.Country[0] != 0 {
		if c.Language != o.Language && requested.Language[0] != 0 {
			return c.Language[0] != 0
		}
		if c.LocaleScript != o.LocaleScript && requested.LocaleScript[0] != 0 {
			return c.LocaleScript[0] != 0
		}
		if c.Country != o.Country && requested.Country[0] != 0 {
			return c.Country[0] != 0
		}
		if c.LocaleVariant != o.LocaleVariant && requested.LocaleVariant[0] != 0 {
			return c.LocaleVariant[0] != 0
		}
	}

	// layout direction
	if c.ScreenLayout != 0 || o.ScreenLayout != 0 {
		myDir := c.ScreenLayout & MaskLayoutDir
		oDir := o.ScreenLayout & MaskLayoutDir
		if myDir != oDir && requested.ScreenLayout&MaskLayoutDir != 0 {
			return myDir > oDir
		}
	}

	// smallest width dp
	if c.SmallestScreenWidthDp != 0 || o.SmallestScreenWidthDp != 0 {
		if c.SmallestScreenWidthDp != o.SmallestScreenWidthDp {
			return c.SmallestScreenWidthDp > o.SmallestScreenWidthDp
		}
	}

	// screen size dp: closest fit below the request wins
	if c.ScreenWidthDp != 0 || c.ScreenHeightDp != 0 ||
		o.ScreenWidthDp != 0 || o.ScreenHeightDp != 0 {
		myDelta, otherDelta := 0, 0
		if requested.ScreenWidthDp != 0 {
			myDelta += int(requested.ScreenWidthDp) - int(c.ScreenWidthDp)
			otherDelta += int(requested.ScreenWidthDp) - int(o.ScreenWidthDp)
		}
		if requested.ScreenHeightDp != 0 {
			myDelta += int(requested.ScreenHeightDp) - int(c.ScreenHeightDp)
			otherDelta += int(requested.ScreenHeightDp) - int(o.ScreenHeightDp)
		}
		if myDelta != otherDelta {
			return myDelta < otherDelta
		}
	}

	// screen size bucket and long flag
	if c.ScreenLayout != 0 || o.ScreenLayout != 0 {
		mySize := c.ScreenLayout & MaskScreenSize
		oSize := o.ScreenLayout & MaskScreenSize
		if mySize != oSize && requested.ScreenLayout&MaskScreenSize != 0 {
			// an unsized config counts as normal when the device is at
			// least normal
			fixedMy, fixedOther := mySize, oSize
			if requested.ScreenLayout&MaskScreenSize >= ScreenSizeNormal {
				if fixedMy == 0 {
					fixedMy = ScreenSizeNormal
				}
				if fixedOther == 0 {
					fixedOther = ScreenSizeNormal
				}
			}
			if fixedMy == fixedOther {
				return mySize != 0
			}
			return fixedMy > fixedOther
		}
		if (c.ScreenLayout^o.ScreenLayout)&MaskScreenLong != 0 &&
			requested.ScreenLayout&MaskScreenLong != 0 {
			return c.ScreenLayout&MaskScreenLong != 0
		}
	}

	// round screen
	if c.ScreenLayout2 != 0 || o.ScreenLayout2 != 0 {
		if (c.ScreenLayout2^o.ScreenLayout2)&MaskScreenRound != 0 &&
			requested.ScreenLayout2&MaskScreenRound != 0 {
			return c.ScreenLayout2&MaskScreenRound != 0
		}
	}

	// color mode
	if c.ColorMode != 0 || o.ColorMode != 0 {
		diff := c.ColorMode ^ o.ColorMode
		if diff&MaskWideColorGamut != 0 && requested.ColorMode&MaskWideColorGamut != 0 {
			return c.ColorMode&MaskWideColorGamut != 0
		}
		if diff&MaskHDR != 0 && requested.ColorMode&MaskHDR != 0 {
			return c.ColorMode&MaskHDR != 0
		}
	}

	// orientation
	if c.Orientation != o.Orientation && requested.Orientation != 0 {
		return c.Orientation != 0
	}

	// ui mode
	if c.UIMode != 0 || o.UIMode != 0 {
		diff := c.UIMode ^ o.UIMode
		if diff&MaskUIModeType != 0 && requested.UIMode&MaskUIModeType != 0 {
			return c.UIMode&MaskUIModeType != 0
		}
		if diff&MaskUIModeNight != 0 && requested.UIMode&MaskUIModeNight != 0 {
			return c.UIMode&MaskUIModeNight != 0
		}
	}

	// density: prefer the candidate whose scaling factor to the
	// requested density is smaller, with a bias towards scaling down
	if c.Density != o.Density {
		h := int(c.Density)
		if h == 0 {
			h = int(DensityMedium)
		}
		l := int(o.Density)
		if l == 0 {
			l = int(DensityMedium)
		}
		mineIsHigh := true
		if l > h {
			h, l = l, h
			mineIsHigh = false
		}
		req := int(requested.Density)
		if req == 0 {
			req = int(DensityMedium)
		}
		if req >= h {
			return mineIsHigh
		}
		if l >= req {
			return !mineIsHigh
		}
		if (2*l-req)*h > req*req {
			return !mineIsHigh
		}
		return mineIsHigh
	}

	// touchscreen
	if c.Touchscreen != o.Touchscreen && requested.Touchscreen != 0 {
		return c.Touchscreen != 0
	}

	// input
	if c.InputFlags != 0 || o.InputFlags != 0 {
		myKeysHidden := c.InputFlags & MaskKeysHidden
		oKeysHidden := o.InputFlags & MaskKeysHidden
		reqKeysHidden := requested.InputFlags & MaskKeysHidden
		if myKeysHidden != oKeysHidden && reqKeysHidden != 0 {
			switch {
			case myKeysHidden == 0:
				return false
			case oKeysHidden == 0:
				return true
			case reqKeysHidden == myKeysHidden:
				return true
			case reqKeysHidden == oKeysHidden:
				return false
			}
		}
		myNavHidden := c.InputFlags & MaskNavHidden
		oNavHidden := o.InputFlags & MaskNavHidden
		if myNavHidden != oNavHidden && requested.InputFlags&MaskNavHidden != 0 {
			switch {
			case myNavHidden == 0:
				return false
			case oNavHidden == 0:
				return true
			}
		}
	}
	if c.Keyboard != o.Keyboard && requested.Keyboard != 0 {
		return c.Keyboard != 0
	}
	if c.Navigation != o.Navigation && requested.Navigation != 0 {
		return c.Navigation != 0
	}

	// screen size px: closest fit below the request wins
	if c.ScreenWidth != 0 || c.ScreenHeight != 0 ||
		o.ScreenWidth != 0 || o.ScreenHeight != 0 {
		myDelta, otherDelta := 0, 0
		if requested.ScreenWidth != 0 {
			myDelta += int(requested.ScreenWidth) - int(c.ScreenWidth)
			otherDelta += int(requested.ScreenWidth) - int(o.ScreenWidth)
		}
		if requested.ScreenHeight != 0 {
			myDelta += int(requested.ScreenHeight) - int(c.ScreenHeight)
			otherDelta += int(requested.ScreenHeight) - int(o.ScreenHeight)
		}
		if myDelta != otherDelta {
			return myDelta < otherDelta
		}
	}

	// version
	if c.SDKVersion != 0 || c.MinorVersion != 0 ||
		o.SDKVersion != 0 || o.MinorVersion != 0 {
		if c.SDKVersion != o.SDKVersion && requested.SDKVersion != 0 {
			return c.SDKVersion > o.SDKVersion
		}
		if c.MinorVersion != o.MinorVersion && requested.MinorVersion != 0 {
			return c.MinorVersion != 0
		}
	}

	return false
}

// IsMoreSpecificThan reports whether this config pins strictly more than
// o on the highest-priority axis where they differ. Used as the ordering
// when no requested config is available.
func (c *Config) IsMoreSpecificThan(o *Config) bool {
	// imsi
	if c.MCC != o.MCC {
		if c.MCC == 0 {
			return false
		}
		if o.MCC == 0 {
			return true
		}
	}
	if c.MNC != o.MNC {
		if c.MNC == 0 {
			return false
		}
		if o.MNC == 0 {
			return true
		}
	}

	// locale
	if c.Language[0] != o.Language[0] {
		if c.Language[0] == 0 {
			return false
		}
		if o.Language[0] == 0 {
			return true
		}
	}
	if c.LocaleScript[0] != o.LocaleScript[0] {
		if c.LocaleScript[0] == 0 {
			return false
		}
		if o.LocaleScript[0] == 0 {
			return true
		}
	}
	if c.Country[0] != o.Country[0] {
		if c.Country[0] == 0 {
			return false
		}
		if o.Country[0] == 0 {
			return true
		}
	}
	if c.LocaleVariant[0] != o.LocaleVariant[0] {
		if c.LocaleVariant[0] == 0 {
			return false
		}
		if o.LocaleVariant[0] == 0 {
			return true
		}
	}

	// layout direction
	if (c.ScreenLayout^o.ScreenLayout)&MaskLayoutDir != 0 {
		if c.ScreenLayout&MaskLayoutDir == 0 {
			return false
		}
		if o.ScreenLayout&MaskLayoutDir == 0 {
			return true
		}
	}

	// smallest width dp
	if c.SmallestScreenWidthDp != o.SmallestScreenWidthDp {
		if c.SmallestScreenWidthDp == 0 {
			return false
		}
		if o.SmallestScreenWidthDp == 0 {
			return true
		}
	}

	// screen size dp
	if c.ScreenWidthDp != o.ScreenWidthDp {
		if c.ScreenWidthDp == 0 {
			return false
		}
		if o.ScreenWidthDp == 0 {
			return true
		}
	}
	if c.ScreenHeightDp != o.ScreenHeightDp {
		if c.ScreenHeightDp == 0 {
			return false
		}
		if o.ScreenHeightDp == 0 {
			return true
		}
	}

	// screen layout
	if (c.ScreenLayout^o.ScreenLayout)&MaskScreenSize != 0 {
		if c.ScreenLayout&MaskScreenSize == 0 {
			return false
		}
		if o.ScreenLayout&MaskScreenSize == 0 {
			return true
		}
	}
	if (c.ScreenLayout^o.ScreenLayout)&MaskScreenLong != 0 {
		if c.ScreenLayout&MaskScreenLong == 0 {
			return false
		}
		if o.ScreenLayout&MaskScreenLong == 0 {
			return true
		}
	}

	// round screen
	if (c.ScreenLayout2^o.ScreenLayout2)&MaskScreenRound != 0 {
		if c.ScreenLayout2&MaskScreenRound == 0 {
			return false
		}
		if o.ScreenLayout2&MaskScreenRound == 0 {
			return true
		}
	}

	// color mode
	if (c.ColorMode^o.ColorMode)&MaskWideColorGamut != 0 {
		if c.ColorMode&MaskWideColorGamut == 0 {
			return false
		}
		if o.ColorMode&MaskWideColorGamut == 0 {
			return true
		}
	}
	if (c.ColorMode^o.ColorMode)&MaskHDR != 0 {
		if c.ColorMode&MaskHDR == 0 {
			return false
		}
		if o.ColorMode&MaskHDR == 0 {
			return true
		}
	}

	// orientation
	if c.Orientation != o.Orientation {
		if c.Orientation == 0 {
			return false
		}
		if o.Orientation == 0 {
			return true
		}
	}

	// ui mode
	if (c.UIMode^o.UIMode)&MaskUIModeType != 0 {
		if c.UIMode&MaskUIModeType == 0 {
			return false
		}
		if o.UIMode&MaskUIModeType == 0 {
			return true
		}
	}
	if (c.UIMode^o.UIMode)&MaskUIModeNight != 0 {
		if c.UIMode&MaskUIModeNight == 0 {
			return false
		}
		if o.UIMode&MaskUIModeNight == 0 {
			return true
		}
	}

	// touchscreen
	if c.Touchscreen != o.Touchscreen {
		if c.Touchscreen == 0 {
			return false
		}
		if o.Touchscreen == 0 {
			return true
		}
	}

	// input
	if (c.InputFlags^o.InputFlags)&MaskKeysHidden != 0 {
		if c.InputFlags&MaskKeysHidden == 0 {
			return false
		}
		if o.InputFlags&MaskKeysHidden == 0 {
			return true
		}
	}
	if (c.InputFlags^o.InputFlags)&MaskNavHidden != 0 {
		if c.InputFlags&MaskNavHidden == 0 {
			return false
		}
		if o.InputFlags&MaskNavHidden == 0 {
			return true
		}
	}
	if c.Keyboard != o.Keyboard {
		if c.Keyboard == 0 {
			return false
		}
		if o.Keyboard == 0 {
			return true
		}
	}
	if c.Navigation != o.Navigation {
		if c.Navigation == 0 {
			return false
		}
		if o.Navigation == 0 {
			return true
		}
	}

	// screen size px
	if c.ScreenWidth != o.ScreenWidth {
		if c.ScreenWidth == 0 {
			return false
		}
		if o.ScreenWidth == 0 {
			return true
		}
	}
	if c.ScreenHeight != o.ScreenHeight {
		if c.ScreenHeight == 0 {
			return false
		}
		if o.ScreenHeight == 0 {
			return true
		}
	}

	// version
	if c.SDKVersion != o.SDKVersion {
		if c.SDKVersion == 0 {
			return false
		}
		if o.SDKVersion == 0 {
			return true
		}
	}
	if c.MinorVersion != o.MinorVersion {
		if c.MinorVersion == 0 {
			return false
		}
		if o.MinorVersion == 0 {
			return true
		}
	}

	return false
}

// Diff returns the union of axis bits on which the two configs disagree.
func (c *Config) Diff(o *Config) uint32 {
	var diffs uint32
	if c.MCC != o.MCC {
		diffs |= ConfigMCC
	}
	if c.MNC != o.MNC {
		diffs |= ConfigMNC
	}
	if c.Language != o.Language || c.Country != o.Country ||
		c.LocaleScript != o.LocaleScript || c.LocaleVariant != o.LocaleVariant {
		diffs |= ConfigLocale
	}
	if c.Touchscreen != o.Touchscreen {
		diffs |= ConfigTouchscreen
	}
	if (c.InputFlags^o.InputFlags)&(MaskKeysHidden|MaskNavHidden) != 0 {
		diffs |= ConfigKeyboardHidden
	}
	if c.Keyboard != o.Keyboard {
		diffs |= ConfigKeyboard
	}
	if c.Navigation != o.Navigation {
		diffs |= ConfigNavigation
	}
	if c.Orientation != o.Orientation {
		diffs |= ConfigOrientation
	}
	if c.Density != o.Density {
		diffs |= ConfigDensity
	}
	if c.ScreenWidth != o.ScreenWidth || c.ScreenHeight != o.ScreenHeight ||
		c.ScreenWidthDp != o.ScreenWidthDp || c.ScreenHeightDp != o.ScreenHeightDp {
		diffs |= ConfigScreenSize
	}
	if c.SDKVersion != o.SDKVersion || c.MinorVersion != o.MinorVersion {
		diffs |= ConfigVersion
	}
	if (c.ScreenLayout^o.ScreenLayout)&MaskLayoutDir != 0 {
		diffs |= ConfigLayoutDir
	}
	if (c.ScreenLayout^o.ScreenLayout)&^MaskLayoutDir != 0 {
		diffs |= ConfigScreenLayout
	}
	if (c.ScreenLayout2^o.ScreenLayout2)&MaskScreenRound != 0 {
		diffs |= ConfigScreenRound
	}
	if (c.ColorMode^o.ColorMode)&(MaskWideColorGamut|MaskHDR) != 0 {
		diffs |= ConfigColorMode
	}
	if c.UIMode != o.UIMode {
		diffs |= ConfigUIMode
	}
	if c.SmallestScreenWidthDp != o.SmallestScreenWidthDp {
		diffs |= ConfigSmallestScreenSize
	}
	return diffs
}

// String renders the configuration as a resource qualifier string, or
// "default" when nothing is set.
func (c *Config) String() string {
	var parts []string

	if c.MCC != 0 {
		parts = append(parts, fmt.Sprintf("mcc%d", c.MCC))
	}
	if c.MNC != 0 {
		parts = append(parts, fmt.Sprintf("mnc%d", c.MNC))
	}
	if loc := c.Locale(); loc != "" {
		if c.LocaleScript[0] != 0 || c.LocaleVariant[0] != 0 {
			parts = append(parts, "b+"+strings.ReplaceAll(loc, "-", "+"))
		} else if c.Country[0] != 0 {
			parts = append(parts, c.language()+"-r"+c.country())
		} else {
			parts = append(parts, c.language())
		}
	}
	switch c.ScreenLayout & MaskLayoutDir {
	case LayoutDirLTR:
		parts = append(parts, "ldltr")
	case LayoutDirRTL:
		parts = append(parts, "ldrtl")
	}
	if c.SmallestScreenWidthDp != 0 {
		parts = append(parts, fmt.Sprintf("sw%ddp", c.SmallestScreenWidthDp))
	}
	if c.ScreenWidthDp != 0 {
		parts = append(parts, fmt.Sprintf("w%ddp", c.ScreenWidthDp))
	}
	if c.ScreenHeightDp != 0 {
		parts = append(parts, fmt.Sprintf("h%ddp", c.ScreenHeightDp))
	}
	switch c.ScreenLayout & MaskScreenSize {
	case ScreenSizeSmall:
		parts = append(parts, "small")
	case ScreenSizeNormal:
		parts = append(parts, "normal")
	case ScreenSizeLarge:
		parts = append(parts, "large")
	case ScreenSizeXLarge:
		parts = append(parts, "xlarge")
	}
	switch c.ScreenLayout & MaskScreenLong {
	case ScreenLongYes:
		parts = append(parts, "long")
	case ScreenLongNo:
		parts = append(parts, "notlong")
	}
	switch c.ScreenLayout2 & MaskScreenRound {
	case ScreenRoundYes:
		parts = append(parts, "round")
	case ScreenRoundNo:
		parts = append(parts, "notround")
	}
	switch c.ColorMode & MaskWideColorGamut {
	case WideColorGamutYes:
		parts = append(parts, "widecg")
	case WideColorGamutNo:
		parts = append(parts, "nowidecg")
	}
	switch c.ColorMode & MaskHDR {
	case HDRYes:
		parts = append(parts, "highdr")
	case HDRNo:
		parts = append(parts, "lowdr")
	}
	switch c.Orientation {
	case OrientationPort:
		parts = append(parts, "port")
	case OrientationLand:
		parts = append(parts, "land")
	case OrientationSquare:
		parts = append(parts, "square")
	}
	switch c.UIMode & MaskUIModeType {
	case UIModeTypeDesk:
		parts = append(parts, "desk")
	case UIModeTypeCar:
		parts = append(parts, "car")
	case UIModeTypeTelevision:
		parts = append(parts, "television")
	case UIModeTypeAppliance:
		parts = append(parts, "appliance")
	case UIModeTypeWatch:
		parts = append(parts, "watch")
	case UIModeTypeVRHeadset:
		parts = append(parts, "vrheadset")
	}
	switch c.UIMode & MaskUIModeNight {
	case UIModeNightYes:
		parts = append(parts, "night")
	case UIModeNightNo:
		parts = append(parts, "notnight")
	}
	switch c.Density {
	case DensityDefault:
	case DensityLow:
		parts = append(parts, "ldpi")
	case DensityMedium:
		parts = append(parts, "mdpi")
	case DensityTV:
		parts = append(parts, "tvdpi")
	case DensityHigh:
		parts = append(parts, "hdpi")
	case DensityXHigh:
		parts = append(parts, "xhdpi")
	case DensityXXHigh:
		parts = append(parts, "xxhdpi")
	case DensityXXXHigh:
		parts = append(parts, "xxxhdpi")
	case DensityAny:
		parts = append(parts, "anydpi")
	case DensityNone:
		parts = append(parts, "nodpi")
	default:
		parts = append(parts, fmt.Sprintf("%ddpi", c.Density))
	}
	switch c.Touchscreen {
	case TouchscreenNoTouch:
		parts = append(parts, "notouch")
	case TouchscreenStylus:
		parts = append(parts, "stylus")
	case TouchscreenFinger:
		parts = append(parts, "finger")
	}
	switch c.InputFlags & MaskKeysHidden {
	case KeysHiddenNo:
		parts = append(parts, "keysexposed")
	case KeysHiddenYes:
		parts = append(parts, "keyshidden")
	case KeysHiddenSoft:
		parts = append(parts, "keyssoft")
	}
	switch c.Keyboard {
	case KeyboardNoKeys:
		parts = append(parts, "nokeys")
	case KeyboardQwerty:
		parts = append(parts, "qwerty")
	case Keyboard12Key:
		parts = append(parts, "12key")
	}
	switch c.InputFlags & MaskNavHidden {
	case NavHiddenNo:
		parts = append(parts, "navexposed")
	case NavHiddenYes:
		parts = append(parts, "navhidden")
	}
	switch c.Navigation {
	case NavigationNoNav:
		parts = append(parts, "nonav")
	case NavigationDPad:
		parts = append(parts, "dpad")
	case NavigationTrackball:
		parts = append(parts, "trackball")
	case NavigationWheel:
		parts = append(parts, "wheel")
	}
	if c.ScreenWidth != 0 || c.ScreenHeight != 0 {
		parts = append(parts, fmt.Sprintf("%dx%d", c.ScreenWidth, c.ScreenHeight))
	}
	if c.SDKVersion != 0 {
		parts = append(parts, fmt.Sprintf("v%d", c.SDKVersion))
	}

	if len(parts) == 0 {
		return "default"
	}
	return strings.Join(parts, "-")
}
