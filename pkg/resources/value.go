package resources

import (
	"encoding/binary"
	"fmt"
	"math"
)

// DataType is the type tag of an encoded resource value.
type DataType uint8

// The closed set of value type tags used in resource tables.
const (
	TypeNull             DataType = 0x00
	TypeReference        DataType = 0x01
	TypeAttribute        DataType = 0x02
	TypeString           DataType = 0x03
	TypeFloat            DataType = 0x04
	TypeDimension        DataType = 0x05
	TypeFraction         DataType = 0x06
	TypeDynamicReference DataType = 0x07
	TypeDynamicAttribute DataType = 0x08

	TypeFirstInt   DataType = 0x10
	TypeIntDec     DataType = 0x10
	TypeIntHex     DataType = 0x11
	TypeIntBoolean DataType = 0x12

	TypeFirstColorInt DataType = 0x1c
	TypeIntColorARGB8 DataType = 0x1c
	TypeIntColorRGB8  DataType = 0x1d
	TypeIntColorARGB4 DataType = 0x1e
	TypeIntColorRGB4  DataType = 0x1f
	TypeLastColorInt  DataType = 0x1f
	TypeLastInt       DataType = 0x1f
)

// Data values for TypeNull.
const (
	DataNullUndefined uint32 = 0 // @null
	DataNullEmpty     uint32 = 1 // @empty
)

func (t DataType) String() string {
	switch t {
	case TypeNull:
		return "null"
	case TypeReference:
		return "reference"
	case TypeAttribute:
		return "attribute"
	case TypeString:
		return "string"
	case TypeFloat:
		return "float"
	case TypeDimension:
		return "dimension"
	case TypeFraction:
		return "fraction"
	case TypeDynamicReference:
		return "dynamic-reference"
	case TypeDynamicAttribute:
		return "dynamic-attribute"
	case TypeIntDec:
		return "int-dec"
	case TypeIntHex:
		return "int-hex"
	case TypeIntBoolean:
		return "int-boolean"
	case TypeIntColorARGB8:
		return "color-argb8"
	case TypeIntColorRGB8:
		return "color-rgb8"
	case TypeIntColorARGB4:
		return "color-argb4"
	case TypeIntColorRGB4:
		return "color-rgb4"
	default:
		return fmt.Sprintf("unknown(0x%02x)", uint8(t))
	}
}

// ValueSize is the wire size of an encoded value.
const ValueSize = 8

// Value is one encoded resource value as it appears on the wire.
type Value struct {
	Size     uint16
	Res0     uint8
	DataType DataType
	Data     uint32
}

// ParseValue decodes a value from the start of data.
func ParseValue(data []byte) (Value, error) {
	if len(data) < ValueSize {
		return Value{}, ErrMalformed
	}
	v := Value{
		Size:     binary.LittleEndian.Uint16(data[0:2]),
		Res0:     data[2],
		DataType: DataType(data[3]),
		Data:     binary.LittleEndian.Uint32(data[4:8]),
	}
	if v.Size < ValueSize {
		return Value{}, ErrMalformed
	}
	return v, nil
}

// Pack serializes the value to exactly 8 bytes.
func (v Value) Pack() []byte {
	buf := make([]byte, ValueSize)
	binary.LittleEndian.PutUint16(buf[0:2], ValueSize)
	buf[2] = v.Res0
	buf[3] = uint8(v.DataType)
	binary.LittleEndian.PutUint32(buf[4:8], v.Data)
	return buf
}

// IsUndefined reports whether the value is the "not set" null.
func (v Value) IsUndefined() bool {
	return v.DataType == TypeNull && v.Data == DataNullUndefined
}

// IsReference reports whether the value carries a resource reference,
// dynamic or not.
func (v Value) IsReference() bool {
	return v.DataType == TypeReference || v.DataType == TypeDynamicReference
}

// IsAttribute reports whether the value carries an attribute reference,
// dynamic or not.
func (v Value) IsAttribute() bool {
	return v.DataType == TypeAttribute || v.DataType == TypeDynamicAttribute
}

// Float reinterprets the data word as an IEEE-754 float (TypeFloat values).
func (v Value) Float() float32 {
	return math.Float32frombits(v.Data)
}

// Complex value layout shared by dimensions and fractions: a mantissa, a
// radix selector and a unit in the low bits.
const (
	complexMantissaShift = 8
	complexMantissaMask  = 0xffffff
	complexRadixShift    = 4
	complexRadixMask     = 0x3
	complexUnitMask      = 0xf
)

var complexRadixMults = [4]float32{
	1.0 / (1 << 8),
	1.0 / (1 << 15),
	1.0 / (1 << 23),
	1.0 / (1 << 31),
}

// ComplexToFloat decodes the numeric part of a dimension or fraction word.
// The mantissa is two's-complement, so negative dimensions decode correctly.
func ComplexToFloat(complex uint32) float32 {
	mantissa := int32(complex & (complexMantissaMask << complexMantissaShift))
	radix := (complex >> complexRadixShift) & complexRadixMask
	return float32(mantissa) * complexRadixMults[radix]
}

var dimensionUnits = [...]string{"px", "dp", "sp", "pt", "in", "mm"}
var fractionUnits = [...]string{"%", "%p"}

// FormatValue renders a value the way the platform's dump tools print it.
// String values cannot be rendered without their pool and come out as a
// pool index.
func FormatValue(v Value) string {
	switch {
	case v.DataType == TypeNull:
		if v.Data == DataNullEmpty {
			return "@empty"
		}
		return "@null"
	case v.DataType == TypeReference:
		return fmt.Sprintf("@%s", ResID(v.Data))
	case v.DataType == TypeDynamicReference:
		return fmt.Sprintf("@dyn/%s", ResID(v.Data))
	case v.DataType == TypeAttribute:
		return fmt.Sprintf("?%s", ResID(v.Data))
	case v.DataType == TypeDynamicAttribute:
		return fmt.Sprintf("?dyn/%s", ResID(v.Data))
	case v.DataType == TypeString:
		return fmt.Sprintf("string(pool:%d)", v.Data)
	case v.DataType == TypeFloat:
		return fmt.Sprintf("%g", v.Float())
	case v.DataType == TypeDimension:
		unit := v.Data & complexUnitMask
		if int(unit) < len(dimensionUnits) {
			return fmt.Sprintf("%g%s", ComplexToFloat(v.Data), dimensionUnits[unit])
		}
		return fmt.Sprintf("%g(unit:%d)", ComplexToFloat(v.Data), unit)
	case v.DataType == TypeFraction:
		unit := v.Data & complexUnitMask
		if int(unit) < len(fractionUnits) {
			return fmt.Sprintf("%g%s", ComplexToFloat(v.Data)*100, fractionUnits[unit])
		}
		return fmt.Sprintf("%g(unit:%d)", ComplexToFloat(v.Data)*100, unit)
	case v.DataType == TypeIntDec:
		return fmt.Sprintf("%d", int32(v.Data))
	case v.DataType == TypeIntHex:
		return fmt.Sprintf("0x%08x", v.Data)
	case v.DataType == TypeIntBoolean:
		if v.Data != 0 {
			return "true"
		}
		return "false"
	case v.DataType >= TypeFirstColorInt && v.DataType <= TypeLastColorInt:
		return fmt.Sprintf("#%08x", v.Data)
	default:
		return fmt.Sprintf("%s(0x%08x)", v.DataType, v.Data)
	}
}
