package record

import "go.mongodb.org/mongo-driver/bson"

// FromBSON converts an ordered BSON document into a RawRecord.
func FromBSON(d bson.D) RawRecord {
	out := make(RawRecord, 0, len(d))
	for _, e := range d {
		out = append(out, Field{Key: e.Key, Value: e.Value})
	}
	return out
}

// BSON converts the record into an ordered BSON document.
func (r RawRecord) BSON() bson.D {
	out := make(bson.D, 0, len(r))
	for _, f := range r {
		out = append(out, bson.E{Key: f.Key, Value: f.Value})
	}
	return out
}
