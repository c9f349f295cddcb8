package domain

import "fmt"

// Field identifies one known column of an ODP observation file.
type Field uint8

// Catalog order is significant: Time and StationNumber lead, EOR closes.
const (
	FieldTime Field = iota
	FieldStationNumber
	FieldStationName
	FieldLatitude
	FieldLongitude
	FieldElevation
	FieldRain
	FieldQRain
	FieldTemp
	FieldQTemp
	FieldTempAvg
	FieldQTempAvg
	FieldTempMin
	FieldQTempMin
	FieldTempMax
	FieldQTempMax
	FieldVisibility
	FieldQVisibility
	FieldPressure
	FieldQPressure
	FieldHumidity
	FieldQHumidity
	FieldGammaRad
	FieldQGammaRad
	FieldSolarRad
	FieldQSolarRad
	FieldUvRad
	FieldQUvRad
	FieldWindSpeed
	FieldQWindSpeed
	FieldWindDir
	FieldQWindDir
	FieldGustSpeed
	FieldQGustSpeed
	FieldGustDir
	FieldQGustDir
	FieldGustMinute
	FieldQGustMinute
	FieldGustSecond
	FieldQGustSecond
	FieldGroundTemp5
	FieldQGroundTemp5
	FieldGroundTemp10
	FieldQGroundTemp10
	FieldGroundTemp20
	FieldQGroundTemp20
	FieldGroundTemp50
	FieldQGroundTemp50
	FieldGroundTemp100
	FieldQGroundTemp100
	FieldSurfaceTemp
	FieldQSurfaceTemp
	FieldWaterTemp
	FieldQWaterTemp
	FieldEOR

	fieldCount
)

// Category classifies a field for column selection.
type Category uint8

const (
	CategoryMandatory Category = iota
	CategoryInfo
	CategoryValue
	CategoryQ
	CategoryEOR
)

func (c Category) String() string {
	switch c {
	case CategoryMandatory:
		return "mandatory"
	case CategoryInfo:
		return "info"
	case CategoryValue:
		return "value"
	case CategoryQ:
		return "q"
	case CategoryEOR:
		return "eor"
	default:
		return fmt.Sprintf("category(%d)", uint8(c))
	}
}

// qPrefix starts the title of every quality-flag column.
const qPrefix = "Q_"

type fieldProps struct {
	title    string
	category Category
	width    int // display width including padding
}

// catalog maps every Field to its properties. The keyed literal makes the
// mapping explicit; field_test.go checks it is complete and consistent.
var catalog = [fieldCount]fieldProps{
	FieldTime:           {"Time", CategoryMandatory, 12},
	FieldStationNumber:  {"StationNumber", CategoryMandatory, 13},
	FieldStationName:    {"StationName", CategoryInfo, 40},
	FieldLatitude:       {"Latitude", CategoryInfo, 8},
	FieldLongitude:      {"Longitude", CategoryInfo, 9},
	FieldElevation:      {"Elevation", CategoryInfo, 9},
	FieldRain:           {"r", CategoryValue, 5},
	FieldQRain:          {"Q_r", CategoryQ, 4},
	FieldTemp:           {"t", CategoryValue, 5},
	FieldQTemp:          {"Q_t", CategoryQ, 4},
	FieldTempAvg:        {"ta", CategoryValue, 5},
	FieldQTempAvg:       {"Q_ta", CategoryQ, 4},
	FieldTempMin:        {"tn", CategoryValue, 5},
	FieldQTempMin:       {"Q_tn", CategoryQ, 4},
	FieldTempMax:        {"tx", CategoryValue, 5},
	FieldQTempMax:       {"Q_tx", CategoryQ, 4},
	FieldVisibility:     {"v", CategoryValue, 6},
	FieldQVisibility:    {"Q_v", CategoryQ, 4},
	FieldPressure:       {"p", CategoryValue, 7},
	FieldQPressure:      {"Q_p", CategoryQ, 4},
	FieldHumidity:       {"u", CategoryValue, 4},
	FieldQHumidity:      {"Q_u", CategoryQ, 4},
	FieldGammaRad:       {"sg", CategoryValue, 8},
	FieldQGammaRad:      {"Q_sg", CategoryQ, 4},
	FieldSolarRad:       {"sr", CategoryValue, 7},
	FieldQSolarRad:      {"Q_sr", CategoryQ, 4},
	FieldUvRad:          {"suv", CategoryValue, 6},
	FieldQUvRad:         {"Q_suv", CategoryQ, 5},
	FieldWindSpeed:      {"fs", CategoryValue, 5},
	FieldQWindSpeed:     {"Q_fs", CategoryQ, 4},
	FieldWindDir:        {"fsd", CategoryValue, 4},
	FieldQWindDir:       {"Q_fsd", CategoryQ, 5},
	FieldGustSpeed:      {"fx", CategoryValue, 5},
	FieldQGustSpeed:     {"Q_fx", CategoryQ, 4},
	FieldGustDir:        {"fxd", CategoryValue, 4},
	FieldQGustDir:       {"Q_fxd", CategoryQ, 5},
	FieldGustMinute:     {"fxm", CategoryValue, 4},
	FieldQGustMinute:    {"Q_fxm", CategoryQ, 5},
	FieldGustSecond:     {"fxs", CategoryValue, 4},
	FieldQGustSecond:    {"Q_fxs", CategoryQ, 5},
	FieldGroundTemp5:    {"et5", CategoryValue, 5},
	FieldQGroundTemp5:   {"Q_et5", CategoryQ, 5},
	FieldGroundTemp10:   {"et10", CategoryValue, 5},
	FieldQGroundTemp10:  {"Q_et10", CategoryQ, 6},
	FieldGroundTemp20:   {"et20", CategoryValue, 5},
	FieldQGroundTemp20:  {"Q_et20", CategoryQ, 6},
	FieldGroundTemp50:   {"et50", CategoryValue, 5},
	FieldQGroundTemp50:  {"Q_et50", CategoryQ, 6},
	FieldGroundTemp100:  {"et100", CategoryValue, 5},
	FieldQGroundTemp100: {"Q_et100", CategoryQ, 7},
	FieldSurfaceTemp:    {"tsn", CategoryValue, 5},
	FieldQSurfaceTemp:   {"Q_tsn", CategoryQ, 5},
	FieldWaterTemp:      {"tviz", CategoryValue, 5},
	FieldQWaterTemp:     {"Q_tviz", CategoryQ, 6},
	FieldEOR:            {"EOR", CategoryEOR, 3},
}

// AllFields returns every known field in catalog order.
func AllFields() []Field {
	fields := make([]Field, fieldCount)
	for i := range fields {
		fields[i] = Field(i)
	}
	return fields
}

// FieldFromTitle looks up a field by its exact, case-sensitive header title.
func FieldFromTitle(title string) (Field, error) {
	for i := range catalog {
		if catalog[i].title == title {
			return Field(i), nil
		}
	}
	return 0, &UnknownFieldError{Title: title}
}

// Valid reports whether f is a catalog entry.
func (f Field) Valid() bool { return f < fieldCount }

// Title is the header token of the field.
func (f Field) Title() string { return catalog[f].title }

// Width is the padded display width used by aligned formats.
func (f Field) Width() int { return catalog[f].width }

func (f Field) Category() Category { return catalog[f].category }

// Numeric reports whether values of the field are parsed as numbers in a
// MetRecord. Station name, quality flags and the EOR marker stay text.
func (f Field) Numeric() bool {
	switch f.Category() {
	case CategoryValue:
		return true
	case CategoryInfo:
		return f != FieldStationName
	default:
		return false
	}
}

func (f Field) String() string {
	if !f.Valid() {
		return fmt.Sprintf("field(%d)", uint8(f))
	}
	return f.Title()
}

// MarshalText encodes the field as its title, so maps keyed by Field
// serialize with header titles as keys.
func (f Field) MarshalText() ([]byte, error) {
	if !f.Valid() {
		return nil, fmt.Errorf("marshal field: invalid field %d", uint8(f))
	}
	return []byte(f.Title()), nil
}

func (f *Field) UnmarshalText(text []byte) error {
	parsed, err := FieldFromTitle(string(text))
	if err != nil {
		return err
	}
	*f = parsed
	return nil
}
