package vocab

import "fmt"

// Field identifies a table column.
type Field int

const (
	FieldSTT Field = iota
	FieldVocabulary
	FieldType
	FieldMeaning
)

// Columns lists the table columns in display order.
var Columns = []Field{FieldSTT, FieldVocabulary, FieldType, FieldMeaning}

// Title is the column header shown to the user.
func (f Field) Title() string {
	switch f {
	case FieldSTT:
		return "STT"
	case FieldVocabulary:
		return "Vocabulary"
	case FieldType:
		return "Type"
	case FieldMeaning:
		return "Meaning"
	}
	return "Unknown"
}

// String returns the JSON name of the field.
func (f Field) String() string {
	switch f {
	case FieldSTT:
		return "stt"
	case FieldVocabulary:
		return "vocabulary"
	case FieldType:
		return "type"
	case FieldMeaning:
		return "meaning"
	}
	return fmt.Sprintf("field(%d)", int(f))
}

// Editable reports whether users may change the column. STT is a label
// assigned at creation.
func (f Field) Editable() bool {
	return f == FieldVocabulary || f == FieldType || f == FieldMeaning
}

// ParseField maps a JSON field name back to its Field.
func ParseField(name string) (Field, error) {
	for _, f := range Columns {
		if f.String() == name {
			return f, nil
		}
	}
	return 0, fmt.Errorf("unknown field %q", name)
}
