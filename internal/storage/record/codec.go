package record

import (
	"time"

	"github.com/yndnr/worldsave/internal/core/world"
	"github.com/yndnr/worldsave/internal/storage/archive"
)

// Field numbers. Never reuse a retired number.
const (
	dataSession archive.Number = 1
	dataEntity  archive.Number = 2

	sessionClass   archive.Number = 1
	sessionPayload archive.Number = 2

	entityClass      archive.Number = 1
	entityName       archive.Number = 2
	entityHidden     archive.Number = 3
	entityProcedural archive.Number = 4
	entityTags       archive.Number = 5
	entityTransform  archive.Number = 6
	entityLinear     archive.Number = 7
	entityAngular    archive.Number = 8
	entityComponent  archive.Number = 9
	entityPayload    archive.Number = 10

	componentName      archive.Number = 1
	componentClass     archive.Number = 2
	componentTransform archive.Number = 3
	componentTags      archive.Number = 4
	componentPayload   archive.Number = 5

	infoID       archive.Number = 1
	infoName     archive.Number = 2
	infoSubname  archive.Number = 3
	infoSaveDate archive.Number = 4
	infoPlayed   archive.Number = 5
	infoLevel    archive.Number = 6
	infoCustom   archive.Number = 7
)

// EncodeInfo encodes a slot info header.
func EncodeInfo(info *SlotInfo) []byte {
	w := archive.NewWriter()
	w.String(infoID, info.ID)
	w.String(infoName, info.Name)
	if info.Subname != "" {
		w.String(infoSubname, info.Subname)
	}
	if !info.SaveDate.IsZero() {
		w.Time(infoSaveDate, info.SaveDate)
	}
	w.Int(infoPlayed, int64(info.PlayedTime))
	if info.Level != "" {
		w.String(infoLevel, info.Level)
	}
	if len(info.Custom) > 0 {
		w.StringMap(infoCustom, info.Custom)
	}
	return w.Bytes()
}

// DecodeInfo decodes a slot info header.
func DecodeInfo(data []byte) (*SlotInfo, error) {
	r, err := archive.NewReader(data)
	if err != nil {
		return nil, err
	}
	info := &SlotInfo{}
	err = r.Each(func(f archive.Field) error {
		var err error
		switch f.Num {
		case infoID:
			info.ID, err = f.Text()
		case infoName:
			info.Name, err = f.Text()
		case infoSubname:
			info.Subname, err = f.Text()
		case infoSaveDate:
			info.SaveDate, err = f.Time()
		case infoPlayed:
			var n int64
			n, err = f.Int()
			info.PlayedTime = time.Duration(n)
		case infoLevel:
			info.Level, err = f.Text()
		case infoCustom:
			info.Custom, err = f.StringMap()
		}
		return err
	})
	if err != nil {
		return nil, err
	}
	return info, nil
}

// EncodeData encodes a slot body.
func EncodeData(d *SlotData) []byte {
	w := archive.NewWriter()
	if d.Session != nil {
		w.Message(dataSession, func(m *archive.Writer) {
			m.String(sessionClass, d.Session.Class)
			if d.Session.Payload != nil {
				m.Raw(sessionPayload, d.Session.Payload)
			}
		})
	}
	for i := range d.Entities {
		rec := &d.Entities[i]
		w.Message(dataEntity, rec.encode)
	}
	return w.Bytes()
}

// DecodeData decodes a slot body.
func DecodeData(data []byte) (*SlotData, error) {
	r, err := archive.NewReader(data)
	if err != nil {
		return nil, err
	}
	d := &SlotData{}
	err = r.Each(func(f archive.Field) error {
		switch f.Num {
		case dataSession:
			m, err := f.Message()
			if err != nil {
				return err
			}
			s := &SessionRecord{}
			err = m.Each(func(sf archive.Field) error {
				var err error
				switch sf.Num {
				case sessionClass:
					s.Class, err = sf.Text()
				case sessionPayload:
					s.Payload, err = sf.Raw()
				}
				return err
			})
			if err != nil {
				return err
			}
			d.Session = s
		case dataEntity:
			m, err := f.Message()
			if err != nil {
				return err
			}
			var rec EntityRecord
			if err := rec.decode(m); err != nil {
				return err
			}
			d.Entities = append(d.Entities, rec)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return d, nil
}

func (r *EntityRecord) encode(w *archive.Writer) {
	w.String(entityClass, r.Class)
	w.String(entityName, r.Name)
	w.Bool(entityHidden, r.Hidden)
	w.Bool(entityProcedural, r.Procedural)
	w.Strings(entityTags, r.Tags)
	if r.Transform != nil {
		w.Transform(entityTransform, *r.Transform)
	}
	if r.LinearVelocity != nil {
		w.Vector(entityLinear, *r.LinearVelocity)
	}
	if r.AngularVelocity != nil {
		w.Vector(entityAngular, *r.AngularVelocity)
	}
	for i := range r.Components {
		c := &r.Components[i]
		w.Message(entityComponent, c.encode)
	}
	if r.Payload != nil {
		w.Raw(entityPayload, r.Payload)
	}
}

func (r *EntityRecord) decode(m *archive.Reader) error {
	return m.Each(func(f archive.Field) error {
		var err error
		switch f.Num {
		case entityClass:
			r.Class, err = f.Text()
		case entityName:
			r.Name, err = f.Text()
		case entityHidden:
			r.Hidden, err = f.Bool()
		case entityProcedural:
			r.Procedural, err = f.Bool()
		case entityTags:
			r.Tags, err = f.Strings()
		case entityTransform:
			var t world.Transform
			t, err = f.Transform()
			r.Transform = &t
		case entityLinear:
			var v world.Vector
			v, err = f.Vector()
			r.LinearVelocity = &v
		case entityAngular:
			var v world.Vector
			v, err = f.Vector()
			r.AngularVelocity = &v
		case entityComponent:
			var cm *archive.Reader
			cm, err = f.Message()
			if err != nil {
				return err
			}
			var c ComponentRecord
			if err = c.decode(cm); err != nil {
				return err
			}
			r.Components = append(r.Components, c)
		case entityPayload:
			r.Payload, err = f.Raw()
		}
		return err
	})
}

func (c *ComponentRecord) encode(w *archive.Writer) {
	w.String(componentName, c.Name)
	w.String(componentClass, c.Class)
	if c.Transform != nil {
		w.Transform(componentTransform, *c.Transform)
	}
	if c.Tags != nil {
		w.Strings(componentTags, c.Tags)
	}
	if c.Payload != nil {
		w.Raw(componentPayload, c.Payload)
	}
}

func (c *ComponentRecord) decode(m *archive.Reader) error {
	return m.Each(func(f archive.Field) error {
		var err error
		switch f.Num {
		case componentName:
			c.Name, err = f.Text()
		case componentClass:
			c.Class, err = f.Text()
		case componentTransform:
			var t world.Transform
			t, err = f.Transform()
			c.Transform = &t
		case componentTags:
			c.Tags, err = f.Strings()
		case componentPayload:
			c.Payload, err = f.Raw()
		}
		return err
	})
}
