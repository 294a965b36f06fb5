package validators

import "go.mongodb.org/mongo-driver/bson"

var ResourceValidator = bson.M{
	"$jsonSchema": bson.M{
		"bsonType": "object",
		"required": []string{"_id", "name", "capacity", "active"},
		"properties": bson.M{
			"_id": uuidString,
			"name": bson.M{
				"bsonType":  "string",
				"minLength": 1,
				"maxLength": 200,
			},
			"capacity": bson.M{
				"bsonType": []string{"int", "long"},
				"minimum":  1,
				"maximum":  10000,
			},
			"info": bson.M{
				"bsonType":  "string",
				"maxLength": 2000,
			},
			"active": bson.M{
				"bsonType": "bool",
			},
		},
	},
}
