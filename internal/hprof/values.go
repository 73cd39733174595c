package hprof

// ReadValue reads one value of the type named by tag. Unknown tags are a
// FormatError(UnknownBasicType, tag) and abort the current record.
func ReadValue(r *Reader, tag BasicType) (Value, error) {
	switch tag {
	case TypeObject:
		v, err := r.ReadID()
		return Value{Type: tag, Object: v}, err
	case TypeBoolean:
		v, err := r.ReadBool()
		return Value{Type: tag, Bool: v}, err
	case TypeChar:
		v, err := r.ReadU16()
		return Value{Type: tag, Char: v}, err
	case TypeFloat:
		v, err := r.ReadF32()
		return Value{Type: tag, Float: v}, err
	case TypeDouble:
		v, err := r.ReadF64()
		return Value{Type: tag, Double: v}, err
	case TypeByte:
		v, err := r.ReadU8()
		return Value{Type: tag, Byte: int8(v)}, err
	case TypeShort:
		v, err := r.ReadU16()
		return Value{Type: tag, Short: int16(v)}, err
	case TypeInt:
		v, err := r.ReadI32()
		return Value{Type: tag, Int: v}, err
	case TypeLong:
		v, err := r.ReadU64()
		return Value{Type: tag, Long: int64(v)}, err
	default:
		return Value{}, &FormatError{
			Reason: ReasonUnknownBasicType,
			Tag:    int(tag),
			Offset: r.Offset(),
		}
	}
}
