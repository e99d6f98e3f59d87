package templates

import (
	"github.com/danmuck/weedcore/internal/weed"
)

// param starts a parameter template with its name and kind.
func (b *Builder) param(name string, kind int32) *plant {
	p := b.start(weed.PlantParameterTemplate)
	p.set(weed.LeafName, weed.Strings{name})
	p.set(weed.LeafParamType, weed.Int32s{kind})
	return p
}

// labelled gives an input parameter its gui plant with a mnemonic label.
func (p *plant) labelled(label string) weed.Handle {
	g := p.gui()
	p.setOn(g, weed.LeafLabel, weed.Strings{label})
	p.setOn(g, weed.LeafUseMnemonic, weed.Booleans{true})
	return g
}

func (b *Builder) Integer(name, label string, def, lo, hi int32) (weed.Handle, error) {
	p := b.param(name, weed.ParamInteger)
	p.set(weed.LeafDefault, weed.Int32s{def})
	p.set(weed.LeafMin, weed.Int32s{lo})
	p.set(weed.LeafMax, weed.Int32s{hi})
	p.labelled(label)
	return p.done("integer param " + name)
}

func (b *Builder) Float(name, label string, def, lo, hi float64) (weed.Handle, error) {
	p := b.param(name, weed.ParamFloat)
	p.set(weed.LeafDefault, weed.Doubles{def})
	p.set(weed.LeafMin, weed.Doubles{lo})
	p.set(weed.LeafMax, weed.Doubles{hi})
	p.labelled(label)
	return p.done("float param " + name)
}

func (b *Builder) Switch(name, label string, def bool) (weed.Handle, error) {
	p := b.param(name, weed.ParamSwitch)
	p.set(weed.LeafDefault, weed.Booleans{def})
	p.labelled(label)
	return p.done("switch param " + name)
}

// Radio is a switch that belongs to a group; at most one member of a
// group is on.
func (b *Builder) Radio(name, label string, def bool, group int32) (weed.Handle, error) {
	p := b.param(name, weed.ParamSwitch)
	p.set(weed.LeafDefault, weed.Booleans{def})
	p.set(weed.LeafGroup, weed.Int32s{group})
	p.labelled(label)
	return p.done("radio param " + name)
}

func (b *Builder) Text(name, label, def string) (weed.Handle, error) {
	p := b.param(name, weed.ParamText)
	p.set(weed.LeafDefault, weed.Strings{def})
	p.labelled(label)
	return p.done("text param " + name)
}

// StringList is an integer parameter indexing into choices. A negative
// default means nothing is selected.
func (b *Builder) StringList(name, label string, def int32, choices []string) (weed.Handle, error) {
	lo, hi := int32(0), int32(len(choices)-1)
	if def <= -1 {
		lo, def = -1, -1
	}
	p := b.param(name, weed.ParamInteger)
	p.set(weed.LeafDefault, weed.Int32s{def})
	p.set(weed.LeafMin, weed.Int32s{lo})
	p.set(weed.LeafMax, weed.Int32s{hi})
	g := p.labelled(label)
	p.setOn(g, weed.LeafChoices, weed.Strings(choices))
	return p.done("string list param " + name)
}

func (b *Builder) ColorRGBInt(name, label string, red, green, blue int32) (weed.Handle, error) {
	p := b.param(name, weed.ParamColor)
	p.set(weed.LeafColorspace, weed.Int32s{weed.ColorspaceRGB})
	p.set(weed.LeafDefault, weed.Int32s{red, green, blue})
	p.set(weed.LeafMin, weed.Int32s{0})
	p.set(weed.LeafMax, weed.Int32s{255})
	p.labelled(label)
	return p.done("color param " + name)
}

func (b *Builder) ColorRGBDouble(name, label string, red, green, blue float64) (weed.Handle, error) {
	p := b.param(name, weed.ParamColor)
	p.set(weed.LeafColorspace, weed.Int32s{weed.ColorspaceRGB})
	p.set(weed.LeafDefault, weed.Doubles{red, green, blue})
	p.set(weed.LeafMin, weed.Doubles{0})
	p.set(weed.LeafMax, weed.Doubles{1})
	p.labelled(label)
	return p.done("color param " + name)
}

// Output parameters carry no gui.

func (b *Builder) OutInteger(name string, def, lo, hi int32) (weed.Handle, error) {
	p := b.param(name, weed.ParamInteger)
	p.set(weed.LeafDefault, weed.Int32s{def})
	p.set(weed.LeafMin, weed.Int32s{lo})
	p.set(weed.LeafMax, weed.Int32s{hi})
	return p.done("out integer param " + name)
}

func (b *Builder) OutIntegerUnbounded(name string, def int32) (weed.Handle, error) {
	p := b.param(name, weed.ParamInteger)
	p.set(weed.LeafDefault, weed.Int32s{def})
	return p.done("out integer param " + name)
}

func (b *Builder) OutSwitch(name string, def bool) (weed.Handle, error) {
	p := b.param(name, weed.ParamSwitch)
	p.set(weed.LeafDefault, weed.Booleans{def})
	return p.done("out switch param " + name)
}

func (b *Builder) OutFloat(name string, def, lo, hi float64) (weed.Handle, error) {
	p := b.param(name, weed.ParamFloat)
	p.set(weed.LeafDefault, weed.Doubles{def})
	p.set(weed.LeafMin, weed.Doubles{lo})
	p.set(weed.LeafMax, weed.Doubles{hi})
	return p.done("out float param " + name)
}

func (b *Builder) OutFloatUnbounded(name string, def float64) (weed.Handle, error) {
	p := b.param(name, weed.ParamFloat)
	p.set(weed.LeafDefault, weed.Doubles{def})
	return p.done("out float param " + name)
}

func (b *Builder) OutText(name, def string) (weed.Handle, error) {
	p := b.param(name, weed.ParamText)
	p.set(weed.LeafDefault, weed.Strings{def})
	return p.done("out text param " + name)
}

func (b *Builder) OutColorRGBInt(name string, red, green, blue int32) (weed.Handle, error) {
	p := b.param(name, weed.ParamColor)
	p.set(weed.LeafColorspace, weed.Int32s{weed.ColorspaceRGB})
	p.set(weed.LeafDefault, weed.Int32s{red, green, blue})
	p.set(weed.LeafMin, weed.Int32s{0})
	p.set(weed.LeafMax, weed.Int32s{255})
	return p.done("out color param " + name)
}

func (b *Builder) OutColorRGBDouble(name string, red, green, blue float64) (weed.Handle, error) {
	p := b.param(name, weed.ParamColor)
	p.set(weed.LeafColorspace, weed.Int32s{weed.ColorspaceRGB})
	p.set(weed.LeafDefault, weed.Doubles{red, green, blue})
	p.set(weed.LeafMin, weed.Doubles{0})
	p.set(weed.LeafMax, weed.Doubles{1})
	return p.done("out color param " + name)
}
