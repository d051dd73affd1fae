package server

const indexHTML = `<!doctype html>
<meta charset="utf-8" />
<title>camview</title>
<style>
body{font-family:system-ui;margin:2rem;background:#111;color:#ddd}
img,video{width:80vw;max-width:1280px;background:#000;display:block;margin-top:1rem}
</style>
<div>
  FPS: <span id="fps">0</span>
  <button id="play">Play WebRTC</button>
  <button id="stop" disabled>Stop</button>
  <input id="file" type="file" accept="image/*" />
  <button id="live" hidden>Back to live</button>
  <span id="msg"></span>
</div>
<img id="frame" alt="latest frame" />
<video id="v" playsinline autoplay muted hidden></video>
<script>
const $=id=>document.getElementById(id);
let pc=null, res=null, live=true;
function poll(){
  if(!live) return;
  const img=new Image();
  img.onload=()=>{if(live){$("frame").src=img.src;} setTimeout(poll,30);};
  img.onerror=()=>setTimeout(poll,500);
  img.src="/frame.jpg?t="+Date.now();
}
$("file").onchange=()=>{
  const f=$("file").files[0];
  if(!f) return;
  const reader=new FileReader();
  reader.onload=()=>{live=false; $("frame").src=reader.result; $("live").hidden=false;};
  reader.readAsDataURL(f);
};
$("live").onclick=()=>{live=true; $("live").hidden=true; $("file").value=""; poll();};
async function stats(){
  try{const s=await (await fetch("/stats")).json(); $("fps").textContent=Math.round(s.pipeline.display.fps);}catch(e){}
  setTimeout(stats,1000);
}
$("play").onclick=async()=>{
  pc=new RTCPeerConnection();
  pc.ontrack=ev=>{$("v").srcObject=ev.streams[0]; $("v").hidden=false;};
  pc.addTransceiver("video",{direction:"recvonly"});
  const offer=await pc.createOffer();
  await pc.setLocalDescription(offer);
  const resp=await fetch("/whep",{method:"POST",headers:{"Content-Type":"application/sdp"},body:offer.sdp});
  if(!resp.ok){$("msg").textContent=await resp.text(); return;}
  res=resp.headers.get("Location");
  await pc.setRemoteDescription({type:"answer",sdp:await resp.text()});
  $("stop").disabled=false;
};
$("stop").onclick=async()=>{
  if(res){await fetch(res,{method:"DELETE"});} if(pc){pc.close();}
  $("v").hidden=true; $("stop").disabled=true;
};
poll(); stats();
</script>`
