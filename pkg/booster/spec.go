package booster

// Interface describes how a trained regressor artefact can be restored and
// used for predictions. Creating a new booster might be as simple as shown
// below.
//
//	boo := &Booster{}
//
type Interface interface {
	// Restore loads a gradient boosted tree model originally saved in JSON
	// format via the "save_model" Python API of XGBoost.
	//
	//	m.save_model("sticker_sales_v1.json")
	//
	// A booster instance restored from the artefact above holds the full
	// tree structure in memory and is safe for concurrent reads. For more
	// information on the IO Model of XGBoost see their official
	// documentation.
	//
	//	https://xgboost.readthedocs.io/en/stable/tutorials/saving_model.html
	//
	Restore(string) error
	// Predict can be called to gather predictions from the underlying trees
	// once the booster instance got bootstrapped via Restore. The input is
	// one feature vector per row, ordered in training feature order. The
	// returned predictions preserve row order.
	Predict([][]float32) ([]float32, error)
}
