package mongodb

import (
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"

	"liquidity-history-service/internal/history/core/domain"
)

var dateOperators = map[domain.DatePart]string{
	domain.PartYear:        "$year",
	domain.PartISOWeekYear: "$isoWeekYear",
	domain.PartMonth:       "$month",
	domain.PartDayOfMonth:  "$dayOfMonth",
	domain.PartHour:        "$hour",
	domain.PartISOWeek:     "$isoWeek",
}

// toMongoPipeline renders a pipeline as aggregation stages.
func toMongoPipeline(p domain.Pipeline) mongo.Pipeline {
	out := make(mongo.Pipeline, 0, len(p))
	for _, st := range p {
		switch st.Kind {
		case domain.StageMatch:
			out = append(out, matchStage(st.Match))
		case domain.StageGroup:
			out = append(out, groupStage(st.Group))
		case domain.StageSort:
			dir := 1
			if st.Sort.Descending {
				dir = -1
			}
			out = append(out, bson.D{{Key: "$sort", Value: bson.D{{Key: st.Sort.Field, Value: dir}}}})
		case domain.StageSkip:
			out = append(out, bson.D{{Key: "$skip", Value: st.Skip}})
		case domain.StageLimit:
			out = append(out, bson.D{{Key: "$limit", Value: st.Limit}})
		}
	}
	return out
}

func matchStage(m *domain.MatchSpec) bson.D {
	cond := bson.D{}
	if m.Gte != nil {
		cond = append(cond, bson.E{Key: "$gte", Value: m.Gte.UTC()})
	}
	if m.Lte != nil {
		cond = append(cond, bson.E{Key: "$lte", Value: m.Lte.UTC()})
	}
	return bson.D{{Key: "$match", Value: bson.D{{Key: m.Field, Value: cond}}}}
}

// groupStage keys by the calendar parts and averages each numeric field
// after a text to double conversion; values that fail to convert become null
// and are ignored by $avg.
func groupStage(g *domain.GroupSpec) bson.D {
	id := bson.D{}
	for _, kp := range g.Key.Parts {
		id = append(id, bson.E{Key: kp.Name, Value: bson.D{{Key: dateOperators[kp.Part], Value: "$" + g.Key.Field}}})
	}

	fields := bson.D{
		{Key: "_id", Value: id},
		{Key: domain.FieldStartTime, Value: bson.D{{Key: "$min", Value: "$" + domain.FieldStartTime}}},
		{Key: domain.FieldEndTime, Value: bson.D{{Key: "$max", Value: "$" + domain.FieldEndTime}}},
	}
	for _, f := range g.Averages {
		fields = append(fields, bson.E{Key: f, Value: bson.D{{Key: "$avg", Value: bson.D{{Key: "$convert", Value: bson.D{
			{Key: "input", Value: "$" + f},
			{Key: "to", Value: "double"},
			{Key: "onError", Value: nil},
			{Key: "onNull", Value: nil},
		}}}}}})
	}
	return bson.D{{Key: "$group", Value: fields}}
}
