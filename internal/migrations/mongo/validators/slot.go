package validators

import "go.mongodb.org/mongo-driver/bson"

// uuidString matches the canonical textual form used for every id.
var uuidString = bson.M{
	"bsonType":  "string",
	"minLength": 36,
	"maxLength": 36,
}

var SlotValidator = bson.M{
	"$jsonSchema": bson.M{
		"bsonType": "object",
		"required": []string{
			"_id",
			"resource_id",
			"start",
			"duration_ns",
			"status",
			"created_at",
		},
		"additionalProperties": true,

		"properties": bson.M{
			"_id": uuidString,

			"resource_id": uuidString,

			"start": bson.M{
				"bsonType": "date",
			},

			"duration_ns": bson.M{
				"bsonType": []string{"int", "long"},
				"minimum":  1,
			},

			"status": bson.M{
				"bsonType": "string",
				"enum": []string{
					"available",
					"pending",
					"booked",
				},
			},

			"created_at": bson.M{
				"bsonType": "date",
			},

			"updated_at": bson.M{
				"bsonType": "date",
			},
		},
	},
}
