package receipt

type Justification int

const (
	JustifyLeft Justification = iota
	JustifyCenter
	JustifyRight
)

func (j Justification) String() string {
	switch j {
	case JustifyCenter:
		return "center"
	case JustifyRight:
		return "right"
	default:
		return "left"
	}
}

// Style is a set of print mode flags applied to a single text line.
type Style uint8

const (
	StyleEmphasized Style = 1 << iota
	StyleDoubleHeight
)

// Instruction is one step of a receipt. The concrete types are Text, Feed,
// Image and Cut.
type Instruction interface {
	instruction()
}

// Text prints Content followed by a line break.
type Text struct {
	Content string
	Justify Justification
	Style   Style
}

// Feed advances the paper by Lines empty lines.
type Feed struct {
	Lines int
}

type Image struct {
	Logo    *Logo
	Justify Justification
}

type Cut struct{}

func (Text) instruction()  {}
func (Feed) instruction()  {}
func (Image) instruction() {}
func (Cut) instruction()   {}

// Logo is an encoded image (PNG or JPEG) printed on the customer copy.
type Logo struct {
	Path string
	Data []byte
}
