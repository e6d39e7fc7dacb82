package middleware

import (
	"encoding/xml"
	"sort"
	"strconv"

	"github.com/pkg/errors"

	"github.com/Crown-Wars/rojo/pkg/instance"
)

// xmlProperty is a single typed property element.
type xmlProperty struct {
	Name  string `xml:"name,attr"`
	Value string `xml:",chardata"`
}

// xmlProperties is the property container of an item.
type xmlProperties struct {
	Strings   []xmlProperty `xml:"string"`
	Bools     []xmlProperty `xml:"bool"`
	Doubles   []xmlProperty `xml:"double"`
	UniqueIds []xmlProperty `xml:"UniqueId"`
}

// xmlItem is one serialized instance.
type xmlItem struct {
	XMLName    xml.Name      `xml:"Item"`
	Class      string        `xml:"class,attr"`
	Properties xmlProperties `xml:"Properties"`
	Items      []xmlItem     `xml:"Item"`
}

// xmlRoblox is the document root.
type xmlRoblox struct {
	XMLName xml.Name  `xml:"roblox"`
	Version string    `xml:"version,attr"`
	Items   []xmlItem `xml:"Item"`
}

// xmlModelCodec reads and writes the XML model format. It covers the
// property types the engine carries natively; richer types round-trip
// through the binary codec registered by the embedding application.
type xmlModelCodec struct{}

// Decode implements ModelCodec.Decode.
func (c *xmlModelCodec) Decode(contents []byte) (*instance.Dom, error) {
	var document xmlRoblox
	if err := xml.Unmarshal(contents, &document); err != nil {
		return nil, errors.Wrap(err, "unable to parse model XML")
	}

	dom := instance.NewDom("DataModel", "")
	for _, item := range document.Items {
		if err := decodeItem(dom, dom.Root(), &item); err != nil {
			return nil, err
		}
	}
	return dom, nil
}

// decodeItem inserts one serialized instance and its descendants.
func decodeItem(dom *instance.Dom, parent instance.Ref, item *xmlItem) error {
	if item.Class == "" {
		return errors.New("item with empty class detected")
	}

	properties := make(instance.Properties)
	name := ""
	for _, property := range item.Properties.Strings {
		if property.Name == "Name" {
			name = property.Value
			continue
		}
		properties[property.Name] = instance.String(property.Value)
	}
	for _, property := range item.Properties.Bools {
		value, err := strconv.ParseBool(property.Value)
		if err != nil {
			return errors.Wrapf(err, "unable to parse bool property %s", property.Name)
		}
		properties[property.Name] = instance.Bool(value)
	}
	for _, property := range item.Properties.Doubles {
		value, err := strconv.ParseFloat(property.Value, 64)
		if err != nil {
			return errors.Wrapf(err, "unable to parse double property %s", property.Name)
		}
		properties[property.Name] = instance.Number(value)
	}
	for _, property := range item.Properties.UniqueIds {
		properties[property.Name] = instance.UniqueId(property.Value)
	}

	ref := dom.Insert(parent, item.Class, name, properties)
	for index := range item.Items {
		if err := decodeItem(dom, ref, &item.Items[index]); err != nil {
			return err
		}
	}
	return nil
}

// Encode implements ModelCodec.Encode.
func (c *xmlModelCodec) Encode(dom *instance.Dom, root instance.Ref) ([]byte, error) {
	item, err := encodeItem(dom, root)
	if err != nil {
		return nil, err
	}
	document := &xmlRoblox{Version: "4", Items: []xmlItem{*item}}
	serialized, err := xml.MarshalIndent(document, "", "  ")
	if err != nil {
		return nil, errors.Wrap(err, "unable to serialize model XML")
	}
	return append(serialized, '\n'), nil
}

// encodeItem serializes one instance and its descendants.
func encodeItem(dom *instance.Dom, ref instance.Ref) (*xmlItem, error) {
	target := dom.Get(ref)
	if target == nil {
		return nil, errors.New("missing ref")
	}

	item := &xmlItem{Class: target.Class}
	item.Properties.Strings = append(item.Properties.Strings, xmlProperty{Name: "Name", Value: target.Name})

	// Emit properties in sorted name order for deterministic output.
	names := make([]string, 0, len(target.Properties))
	for name := range target.Properties {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		switch value := target.Properties[name].(type) {
		case instance.String:
			item.Properties.Strings = append(item.Properties.Strings, xmlProperty{Name: name, Value: string(value)})
		case instance.Bool:
			item.Properties.Bools = append(item.Properties.Bools, xmlProperty{Name: name, Value: strconv.FormatBool(bool(value))})
		case instance.Number:
			item.Properties.Doubles = append(item.Properties.Doubles, xmlProperty{Name: name, Value: strconv.FormatFloat(float64(value), 'g', -1, 64)})
		case instance.UniqueId:
			item.Properties.UniqueIds = append(item.Properties.UniqueIds, xmlProperty{Name: name, Value: string(value)})
		default:
			return nil, errors.Errorf("unsupported property kind for %s", name)
		}
	}

	for _, childRef := range target.Children() {
		child, err := encodeItem(dom, childRef)
		if err != nil {
			return nil, err
		}
		item.Items = append(item.Items, *child)
	}
	return item, nil
}
