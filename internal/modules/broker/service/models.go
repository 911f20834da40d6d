package service

// Broker wire types. Prices come back as strings, same as they go out.

type errorBody struct {
	ErrorCode    string `json:"errorCode"`
	ErrorMessage string `json:"errorMessage"`
}

type candlesResponse struct {
	Instrument  string `json:"instrument"`
	Granularity string `json:"granularity"`
	Candles     []struct {
		Time     string `json:"time"`
		Volume   float64 `json:"volume"`
		Complete bool   `json:"complete"`
		Mid      struct {
			O string `json:"o"`
			H string `json:"h"`
			L string `json:"l"`
			C string `json:"c"`
		} `json:"mid"`
	} `json:"candles"`
}

type accountResponse struct {
	Account struct {
		Balance      string `json:"balance"`
		Currency     string `json:"currency"`
		UnrealizedPL string `json:"unrealizedPL"`
	} `json:"account"`
}

type positionsResponse struct {
	Positions []struct {
		Instrument string `json:"instrument"`
		Long       struct {
			Units        string `json:"units"`
			AveragePrice string `json:"averagePrice"`
		} `json:"long"`
		Short struct {
			Units        string `json:"units"`
			AveragePrice string `json:"averagePrice"`
		} `json:"short"`
	} `json:"positions"`
}

type bracketLeg struct {
	Price       string `json:"price"`
	TimeInForce string `json:"timeInForce"`
}

type marketOrder struct {
	Type         string      `json:"type"`
	Instrument   string      `json:"instrument"`
	Units        string      `json:"units"`
	TimeInForce  string      `json:"timeInForce"`
	PositionFill string      `json:"positionFill"`
	StopLoss     *bracketLeg `json:"stopLossOnFill,omitempty"`
	TakeProfit   *bracketLeg `json:"takeProfitOnFill,omitempty"`
}

type orderRequestBody struct {
	Order marketOrder `json:"order"`
}

type orderResponse struct {
	OrderCreateTransaction *struct {
		ID string `json:"id"`
	} `json:"orderCreateTransaction"`
	OrderFillTransaction *struct {
		ID    string `json:"id"`
		Price string `json:"price"`
	} `json:"orderFillTransaction"`
	OrderCancelTransaction *struct {
		Reason string `json:"reason"`
	} `json:"orderCancelTransaction"`
	StopLossTransaction *struct {
		ID string `json:"id"`
	} `json:"stopLossOrderTransaction"`
	TakeProfitTransaction *struct {
		ID string `json:"id"`
	} `json:"takeProfitOrderTransaction"`
	ErrorCode    string `json:"errorCode"`
	ErrorMessage string `json:"errorMessage"`
}
