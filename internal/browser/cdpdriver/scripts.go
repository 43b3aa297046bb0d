package cdpdriver

// mutationBinding is the runtime binding the injected observer calls.
const mutationBinding = "__pagepilotMutation"

// observerScript installs a coalescing MutationObserver in every document
// that reports through mutationBinding.
const observerScript = `(() => {
  if (window.__pagepilotObserver) return;
  let pending = false;
  const notify = () => {
    if (pending) return;
    pending = true;
    setTimeout(() => {
      pending = false;
      try { window.` + mutationBinding + `('m'); } catch (e) {}
    }, 0);
  };
  window.__pagepilotObserver = new MutationObserver(notify);
  window.__pagepilotObserver.observe(document, {childList: true, subtree: true, attributes: true, characterData: true});
})();`

// The declarations below run with this bound to the target element, or to
// the document for dispatchFn without an element.

const clickFn = `function() { this.click(); return true; }`

const focusFn = `function() { this.focus(); return true; }`

const dispatchFn = `function(spec) {
  const doc = this.ownerDocument || this;
  const view = doc.defaultView || window;
  const init = {bubbles: spec.bubbles, cancelable: true, composed: true};
  const mouse = ['click', 'dblclick', 'contextmenu', 'mousedown', 'mouseup', 'mouseover', 'mouseout', 'mousemove'];
  let ev;
  if (spec.type.startsWith('key')) {
    ev = new view.KeyboardEvent(spec.type, Object.assign({key: spec.key}, init));
  } else if (mouse.includes(spec.type)) {
    ev = new view.MouseEvent(spec.type, Object.assign({button: spec.button, view: view}, init));
  } else if (spec.type === 'input' || spec.type === 'beforeinput') {
    ev = new view.InputEvent(spec.type, Object.assign({data: spec.data, inputType: 'insertText'}, init));
  } else if (spec.type === 'paste') {
    const dt = new view.DataTransfer();
    dt.setData('text/plain', spec.clipboardText);
    ev = new view.ClipboardEvent('paste', Object.assign({clipboardData: dt}, init));
  } else {
    ev = new view.Event(spec.type, init);
  }
  this.dispatchEvent(ev);
  return true;
}`

const setValueFn = `function(value) {
  const view = this.ownerDocument.defaultView;
  const tag = this.tagName.toLowerCase();
  if (tag === 'select') {
    const options = Array.from(this.options);
    const opt = options.find(o => o.value === value) || options.find(o => o.text.trim() === value.trim());
    if (!opt) throw new Error('no option matches ' + JSON.stringify(value));
    this.value = opt.value;
    return true;
  }
  const proto = tag === 'textarea' ? view.HTMLTextAreaElement.prototype : view.HTMLInputElement.prototype;
  Object.getOwnPropertyDescriptor(proto, 'value').set.call(this, value);
  return true;
}`

const setInnerTextFn = `function(text) { this.innerText = text; return true; }`

const scrollIntoViewFn = `function() {
  this.scrollIntoView({behavior: 'smooth', block: 'center', inline: 'center'});
  return true;
}`

const submitFn = `function() {
  if (typeof this.requestSubmit === 'function') { this.requestSubmit(); } else { this.submit(); }
  return true;
}`

const drawOverlayFn = `function(h, containerID) {
  let c = document.getElementById(containerID);
  if (!c) {
    c = document.createElement('div');
    c.id = containerID;
    c.style.cssText = 'position:fixed;top:0;left:0;width:0;height:0;pointer-events:none;z-index:2147483647';
    (document.body || document.documentElement).appendChild(c);
  }
  const old = document.getElementById(h.id);
  if (old) old.remove();
  const box = document.createElement('div');
  box.id = h.id;
  box.style.cssText = 'position:fixed;left:' + h.x + 'px;top:' + h.y + 'px;width:' + h.width + 'px;height:' + h.height +
    'px;border:2px solid ' + h.color + ';pointer-events:none;box-sizing:border-box';
  if (h.label) {
    const label = document.createElement('span');
    label.textContent = h.label;
    label.style.cssText = 'position:absolute;top:-18px;left:0;background:' + h.color + ';color:#fff;font-size:12px';
    box.appendChild(label);
  }
  c.appendChild(box);
  return true;
}`

const removeOverlayFn = `function(id) {
  const box = document.getElementById(id);
  if (box) box.remove();
  return true;
}`

const clearOverlaysFn = `function(containerID) {
  const c = document.getElementById(containerID);
  if (c) c.remove();
  return true;
}`

const scrollByFn = `function(dx, dy) { window.scrollBy(dx, dy); return true; }`

const scrollToEndFn = `function() {
  window.scrollTo(window.scrollX, document.documentElement.scrollHeight);
  return true;
}`
