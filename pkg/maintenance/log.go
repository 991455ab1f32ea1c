package maintenance

import (
	"fmt"
	"reflect"
	"strings"
	"time"

	"github.com/aretw0/stepwise/pkg/domain"
	"github.com/mitchellh/mapstructure"
)

// Log is the typed maintenance entry assembled from a completed run.
type Log struct {
	Flow     string      `json:"flow" toml:"flow" yaml:"flow"`
	Basic    BasicInfo   `json:"basic" toml:"basic" yaml:"basic" mapstructure:"basic"`
	Services ServiceList `json:"services" toml:"services" yaml:"services" mapstructure:"services"`
	Parts    *PartsInfo  `json:"parts,omitempty" toml:"parts,omitempty" yaml:"parts,omitempty" mapstructure:"parts"`
	Shop     *ShopInfo   `json:"shop,omitempty" toml:"shop,omitempty" yaml:"shop,omitempty" mapstructure:"shop"`
	Photos   PhotoList   `json:"photos" toml:"photos" yaml:"photos" mapstructure:"photos"`
	Notes    NotesEntry  `json:"notes" toml:"notes" yaml:"notes" mapstructure:"notes"`
}

type BasicInfo struct {
	Date        time.Time `json:"date" toml:"date" yaml:"date" mapstructure:"date"`
	Mileage     int64     `json:"mileage" toml:"mileage" yaml:"mileage" mapstructure:"mileage"`
	WantsPhotos bool      `json:"wants_photos" toml:"wants_photos" yaml:"wants_photos" mapstructure:"wantsPhotos"`
}

type ServiceList struct {
	Services []string `json:"services" toml:"services" yaml:"services" mapstructure:"services"`
}

type PartsInfo struct {
	Parts []string `json:"parts" toml:"parts" yaml:"parts" mapstructure:"parts"`
	Cost  float64  `json:"cost" toml:"cost" yaml:"cost" mapstructure:"cost"`
}

type ShopInfo struct {
	Name string  `json:"name" toml:"name" yaml:"name" mapstructure:"shopName"`
	Cost float64 `json:"cost" toml:"cost" yaml:"cost" mapstructure:"cost"`
}

type PhotoList struct {
	Photos []string `json:"photos,omitempty" toml:"photos,omitempty" yaml:"photos,omitempty" mapstructure:"photos"`
}

type NotesEntry struct {
	Notes string `json:"notes,omitempty" toml:"notes,omitempty" yaml:"notes,omitempty" mapstructure:"notes"`
}

// Cost returns the amount recorded by whichever cost step the flow had.
func (l Log) Cost() float64 {
	switch {
	case l.Parts != nil:
		return l.Parts.Cost
	case l.Shop != nil:
		return l.Shop.Cost
	}
	return 0
}

// ToLog decodes the aggregated data of a completed run into a Log.
// Photos are dropped when the user turned them off after adding some.
func ToLog(flow string, data domain.Data) (Log, error) {
	log := Log{Flow: flow}
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		DecodeHook: mapstructure.ComposeDecodeHookFunc(
			timeHook,
			numberHook,
		),
		WeaklyTypedInput: true,
		Result:           &log,
	})
	if err != nil {
		return Log{}, err
	}

	input := data.Plain()
	if flow != FlowShop {
		delete(input, StepShop)
	}
	if flow != FlowDIY {
		delete(input, StepParts)
	}
	if err := decoder.Decode(input); err != nil {
		return Log{}, fmt.Errorf("decode %s log: %w", flow, err)
	}
	if !log.Basic.WantsPhotos {
		log.Photos = PhotoList{}
	}
	log.Notes.Notes = strings.TrimSpace(log.Notes.Notes)
	return log, nil
}

var timeType = reflect.TypeOf(time.Time{})

func timeHook(from reflect.Type, to reflect.Type, data any) (any, error) {
	if to != timeType {
		return data, nil
	}
	switch v := data.(type) {
	case *time.Time:
		if v == nil {
			return time.Time{}, nil
		}
		return *v, nil
	case string:
		for _, layout := range []string{time.RFC3339, "2006-01-02"} {
			if t, err := time.Parse(layout, strings.TrimSpace(v)); err == nil {
				return t, nil
			}
		}
		return nil, fmt.Errorf("invalid date %q", v)
	}
	return data, nil
}

// numberHook strips thousands separators before weak string conversion.
func numberHook(from reflect.Type, to reflect.Type, data any) (any, error) {
	if from.Kind() != reflect.String {
		return data, nil
	}
	switch to.Kind() {
	case reflect.Int, reflect.Int64, reflect.Float64:
		return strings.ReplaceAll(strings.TrimSpace(data.(string)), ",", ""), nil
	}
	return data, nil
}
